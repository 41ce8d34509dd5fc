//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martload/martload/internal/pipeline"
	"github.com/martload/martload/internal/warehouse"
)

func salesRow(tx, email, sku, qty, price string) map[string]string {
	return map[string]string{
		pipeline.FieldTransactionID: tx,
		pipeline.FieldTimestamp:     "2026-08-14",
		pipeline.FieldCustomerEmail: email,
		pipeline.FieldCustomerName:  "Ada Lovelace",
		pipeline.FieldProductSKU:    sku,
		pipeline.FieldQuantity:      qty,
		pipeline.FieldUnitPrice:     price,
		pipeline.FieldCurrency:      "USD",
	}
}

func batchOf(id string, rows ...map[string]string) pipeline.SourceBatch {
	return pipeline.SourceBatch{
		ID:     id,
		Source: id + ".csv",
		Records: func(yield func(pipeline.RawRecord, error) bool) {
			for i, fields := range rows {
				if !yield(pipeline.RawRecord{Row: i + 2, Fields: fields}, nil) {
					return
				}
			}
		},
	}
}

func newCoordinator(store pipeline.Store) *pipeline.Coordinator {
	return pipeline.NewCoordinator(store, pipeline.NewNormalizer("USD"))
}

// The concrete scenario from the loader's contract: one good row, one row
// with a negative quantity.
func TestRunBatchMixedRows(t *testing.T) {
	store := warehouse.NewMemoryStore()
	coordinator := newCoordinator(store)

	report, err := coordinator.RunBatch(context.Background(), batchOf("B1",
		salesRow("TX-1", "a@x.com", "S1", "2", "10.00"),
		salesRow("TX-2", "a@x.com", "S2", "-1", "5.00"),
	))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusCommitted, report.Status)
	assert.Equal(t, 1, report.Counts.Normalized)
	assert.Equal(t, 1, report.Counts.Rejected)
	assert.Equal(t, 1, report.Counts.FactsLoaded)
	assert.Equal(t, 1, report.RejectReasons[pipeline.ReasonNegativeMeasure])

	customers, products, dates := store.DimensionCounts()
	assert.Equal(t, 1, customers, "one customer row for a@x.com")
	assert.Equal(t, 1, products, "only S1 reached resolution")
	assert.Equal(t, 1, dates)

	facts := store.BatchFacts("B1")
	require.Len(t, facts, 1)
	assert.Equal(t, "TX-1", facts[0].TransactionID)
	assert.Equal(t, 2, facts[0].Quantity)
	assert.Equal(t, 20.00, facts[0].Amount)

	entry, ok := store.Ledger("B1")
	require.True(t, ok)
	assert.Equal(t, "committed", entry.Status)
}

func TestRunBatchRerunIsNoop(t *testing.T) {
	store := warehouse.NewMemoryStore()
	coordinator := newCoordinator(store)
	batch := batchOf("B1",
		salesRow("TX-1", "a@x.com", "S1", "2", "10.00"),
		salesRow("TX-2", "a@x.com", "S2", "-1", "5.00"),
	)

	_, err := coordinator.RunBatch(context.Background(), batch)
	require.NoError(t, err)

	customersBefore, productsBefore, datesBefore := store.DimensionCounts()
	factsBefore := len(store.Facts())

	report, err := coordinator.RunBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNoop, report.Status)

	customers, products, dates := store.DimensionCounts()
	assert.Equal(t, customersBefore, customers, "rerun must create zero dimension rows")
	assert.Equal(t, productsBefore, products)
	assert.Equal(t, datesBefore, dates)
	assert.Equal(t, factsBefore, len(store.Facts()), "rerun must create zero fact rows")
}

func TestRunBatchAttributeDriftAcrossBatches(t *testing.T) {
	store := warehouse.NewMemoryStore()
	coordinator := newCoordinator(store)
	ctx := context.Background()

	_, err := coordinator.RunBatch(ctx, batchOf("B1",
		salesRow("TX-1", "a@x.com", "S1", "1", "10.00"),
	))
	require.NoError(t, err)
	skBefore := store.BatchFacts("B1")[0].CustomerSK

	moved := salesRow("TX-9", "a@x.com", "S1", "1", "10.00")
	moved[pipeline.FieldCity] = "Paris"
	_, err = coordinator.RunBatch(ctx, batchOf("B2", moved))
	require.NoError(t, err)

	assert.Equal(t, skBefore, store.BatchFacts("B2")[0].CustomerSK,
		"changed attributes keep the surrogate key")
	assert.Equal(t, 2, store.CustomerVersion("a@x.com"))
	attrs, _ := store.CustomerAttrs("a@x.com")
	assert.Equal(t, "Paris", attrs.City)
}

func TestRunBatchStoreUnavailableFailsBatch(t *testing.T) {
	store := warehouse.NewMemoryStore()
	store.ResolveErr = fmt.Errorf("%w: connection refused", pipeline.ErrDimensionUnavailable)
	coordinator := newCoordinator(store)

	report, err := coordinator.RunBatch(context.Background(), batchOf("B1",
		salesRow("TX-1", "a@x.com", "S1", "2", "10.00"),
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrDimensionUnavailable)
	assert.Equal(t, pipeline.StatusFailed, report.Status)
	assert.Empty(t, store.Facts(), "no partial facts after a failed batch")

	entry, ok := store.Ledger("B1")
	require.True(t, ok)
	assert.Equal(t, "failed", entry.Status)
	assert.NotEmpty(t, entry.Reason)
}

func TestRunBatchRecordLevelResolutionFailureRejects(t *testing.T) {
	store := warehouse.NewMemoryStore()
	store.ResolveErr = errors.New("key constraint violated")
	coordinator := newCoordinator(store)

	report, err := coordinator.RunBatch(context.Background(), batchOf("B1",
		salesRow("TX-1", "a@x.com", "S1", "2", "10.00"),
	))
	require.NoError(t, err, "record-level resolution failures do not abort the batch")

	assert.Equal(t, pipeline.StatusCommitted, report.Status)
	assert.Equal(t, 1, report.RejectReasons[pipeline.ReasonDimensionUnresolved])
	assert.Zero(t, report.Counts.FactsLoaded)
}

func TestRunBatchWriteFailureLeavesNoFacts(t *testing.T) {
	store := warehouse.NewMemoryStore()
	store.WriteErr = errors.New("deadlock detected")
	coordinator := newCoordinator(store)

	report, err := coordinator.RunBatch(context.Background(), batchOf("B1",
		salesRow("TX-1", "a@x.com", "S1", "2", "10.00"),
		salesRow("TX-2", "b@x.com", "S2", "3", "4.00"),
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrTransactionFailed)
	assert.Equal(t, pipeline.StatusFailed, report.Status)
	assert.Empty(t, store.Facts(), "transaction is all-or-nothing")

	entry, _ := store.Ledger("B1")
	assert.Equal(t, "failed", entry.Status)

	// Operator retry after the store recovers loads the full batch.
	store.WriteErr = nil
	report, err = coordinator.RunBatch(context.Background(), batchOf("B1",
		salesRow("TX-1", "a@x.com", "S1", "2", "10.00"),
		salesRow("TX-2", "b@x.com", "S2", "3", "4.00"),
	))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCommitted, report.Status)
	assert.Len(t, store.BatchFacts("B1"), 2)
}

// flakyCommitStore fails the first ledger commit, simulating a crash in
// the window between the fact transaction and the ledger flip.
type flakyCommitStore struct {
	pipeline.Store

	failures int
}

func (s *flakyCommitStore) CommitBatch(ctx context.Context, batchID string, counts pipeline.Counts) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset by peer")
	}
	return s.Store.CommitBatch(ctx, batchID, counts)
}

func TestRunBatchRetryAfterLedgerCommitFailure(t *testing.T) {
	mem := warehouse.NewMemoryStore()
	store := &flakyCommitStore{Store: mem, failures: 1}
	coordinator := newCoordinator(store)
	batch := batchOf("B1", salesRow("TX-1", "a@x.com", "S1", "2", "10.00"))

	report, err := coordinator.RunBatch(context.Background(), batch)
	require.Error(t, err)
	assert.Equal(t, pipeline.StatusFailed, report.Status)

	// The fact transaction committed before the ledger write failed. The
	// retry must replace those rows, not append to them.
	report, err = coordinator.RunBatch(context.Background(),
		batchOf("B1", salesRow("TX-1", "a@x.com", "S1", "2", "10.00")))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCommitted, report.Status)
	require.Len(t, mem.BatchFacts("B1"), 1, "retried batch must not duplicate facts")
	assert.Equal(t, "TX-1", mem.BatchFacts("B1")[0].TransactionID)
}

func TestRunBatchSourceErrorsBecomeRejects(t *testing.T) {
	store := warehouse.NewMemoryStore()
	coordinator := newCoordinator(store)

	batch := pipeline.SourceBatch{
		ID: "B1",
		Records: func(yield func(pipeline.RawRecord, error) bool) {
			if !yield(pipeline.RawRecord{Row: 2, Fields: salesRow("TX-1", "a@x.com", "S1", "1", "2.00")}, nil) {
				return
			}
			yield(pipeline.RawRecord{Row: 3}, errors.New("parse error on line 3"))
		},
	}

	report, err := coordinator.RunBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCommitted, report.Status)
	assert.Equal(t, 1, report.Counts.FactsLoaded)
	assert.Equal(t, 1, report.RejectReasons[pipeline.ReasonInvalidType])
}

func TestRunBatchRejectOrderFollowsInput(t *testing.T) {
	store := warehouse.NewMemoryStore()
	coordinator := newCoordinator(store)

	bad1 := salesRow("TX-1", "", "S1", "1", "1.00")
	bad2 := salesRow("TX-2", "b@x.com", "S2", "-3", "1.00")
	bad3 := salesRow("TX-3", "c@x.com", "S3", "x", "1.00")

	report, err := coordinator.RunBatch(context.Background(), batchOf("B1", bad1, bad2, bad3))
	require.NoError(t, err)
	require.Len(t, report.Rejected, 3)
	assert.Equal(t, []int{2, 3, 4},
		[]int{report.Rejected[0].Row, report.Rejected[1].Row, report.Rejected[2].Row})
}

func TestRunBatchReload(t *testing.T) {
	store := warehouse.NewMemoryStore()
	coordinator := newCoordinator(store)
	ctx := context.Background()

	batch := batchOf("B1", salesRow("TX-1", "a@x.com", "S1", "2", "10.00"))
	_, err := coordinator.RunBatch(ctx, batch)
	require.NoError(t, err)

	reloader := newCoordinator(store)
	reloader.Reload = true
	report, err := reloader.RunBatch(ctx, batchOf("B1", salesRow("TX-1", "a@x.com", "S1", "2", "10.00")))
	require.NoError(t, err)

	assert.Equal(t, pipeline.StatusCommitted, report.Status, "reload processes a committed batch again")
	assert.Len(t, store.BatchFacts("B1"), 1, "facts are replaced, not duplicated")
}
