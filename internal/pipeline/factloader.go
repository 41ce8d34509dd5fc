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
	"fmt"
	"math"
)

// FactLoader assembles fact rows from resolved surrogate keys and measures
// and holds them as the batch's pending write set. Nothing reaches the
// warehouse until Flush, which writes the whole set in one all-or-nothing
// transaction so a crash mid-write leaves no partial facts.
type FactLoader struct {
	store   Store
	batchID string
	pending []FactRow
}

// NewFactLoader creates a fact loader for one batch.
func NewFactLoader(store Store, batchID string) *FactLoader {
	return &FactLoader{store: store, batchID: batchID}
}

// Add builds a FactRow from a record and its resolved keys and appends it
// to the pending write set.
func (l *FactLoader) Add(rec *NormalizedRecord, keys Keys) {
	l.pending = append(l.pending, FactRow{
		TransactionID: rec.TransactionID,
		CustomerSK:    keys.CustomerSK,
		ProductSK:     keys.ProductSK,
		DateSK:        keys.DateSK,
		Quantity:      rec.Quantity,
		UnitPrice:     rec.UnitPrice,
		Amount:        roundCents(float64(rec.Quantity) * rec.UnitPrice),
		Currency:      rec.Currency,
		BatchID:       l.batchID,
	})
}

// Pending returns the number of rows in the pending write set.
func (l *FactLoader) Pending() int {
	return len(l.pending)
}

// Flush writes the full pending set transactionally. Failures come back
// wrapped in ErrTransactionFailed and leave zero rows for the batch.
func (l *FactLoader) Flush(ctx context.Context) error {
	if len(l.pending) == 0 {
		return nil
	}
	if err := l.store.WriteFacts(ctx, l.batchID, l.pending); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
