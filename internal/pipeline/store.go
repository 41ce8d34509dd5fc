//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the store contract.
var (
	// ErrAlreadyCommitted is returned by BeginBatch when the batch id is
	// already committed in the ledger. The coordinator treats this as a
	// successful no-op, not a failure.
	ErrAlreadyCommitted = errors.New("batch already committed")

	// ErrDimensionUnavailable indicates the store was unreachable during
	// key resolution. It aborts the whole batch.
	ErrDimensionUnavailable = errors.New("dimension store unavailable")

	// ErrTransactionFailed indicates the fact write transaction aborted.
	// No facts for the batch persist when this is returned.
	ErrTransactionFailed = errors.New("fact transaction failed")
)

// Store is what the loading engine needs from the warehouse. The pipeline
// owns this interface; internal/warehouse provides the PostgreSQL
// implementation and an in-memory one for tests and dry runs.
//
// Resolve methods upsert: on first sighting of a natural key they create
// the dimension row with a store-assigned, strictly increasing surrogate
// key; on later sightings with differing attributes they overwrite in
// place (type-1) and bump the row's version marker. The surrogate key
// never changes for a live row. Natural-key uniqueness in the store is the
// sole concurrency-safety mechanism: two writers racing on the same key
// both end up with the winner's surrogate key.
type Store interface {
	// ResolveCustomer maps a customer email to its surrogate key.
	ResolveCustomer(ctx context.Context, c Customer) (int64, error)

	// ResolveProduct maps a product SKU to its surrogate key.
	ResolveProduct(ctx context.Context, p Product) (int64, error)

	// ResolveDate maps a calendar date to its surrogate key.
	ResolveDate(ctx context.Context, day time.Time) (int64, error)

	// WriteFacts writes a batch's full pending set in one all-or-nothing
	// transaction: either every row persists or none does.
	WriteFacts(ctx context.Context, batchID string, facts []FactRow) error

	// DeleteBatchFacts removes all facts for a batch along with its
	// ledger entry, used only by an explicit reload.
	DeleteBatchFacts(ctx context.Context, batchID string) error

	// BeginBatch opens a ledger entry for the batch. Returns
	// ErrAlreadyCommitted if the batch has already been fully loaded.
	// A failed or stale in-progress entry is reopened.
	BeginBatch(ctx context.Context, batchID, source string) error

	// CommitBatch flips the ledger entry to committed. It is the single
	// write that marks a batch done and must happen only after WriteFacts
	// succeeded.
	CommitBatch(ctx context.Context, batchID string, counts Counts) error

	// FailBatch records that the batch aborted and why.
	FailBatch(ctx context.Context, batchID, reason string) error
}
