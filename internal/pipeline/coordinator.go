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
	"fmt"
	"time"

	"github.com/martload/martload/internal/logging"
	"github.com/martload/martload/internal/metrics"
)

// State is a batch's position in the load state machine.
type State string

const (
	StatePending     State = "pending"
	StateNormalizing State = "normalizing"
	StateResolving   State = "resolving"
	StateLoading     State = "loading"
	StateCommitted   State = "committed"
	StateFailed      State = "failed"
)

// Coordinator orchestrates a batch through normalize, resolve, and load as
// one unit of work, enforcing idempotency per source batch through the run
// ledger. Each RunBatch call is a single, complete, independently testable
// unit; the scheduling trigger lives outside the core.
type Coordinator struct {
	store      Store
	normalizer *Normalizer

	// Reload drops the batch's existing facts and ledger status before
	// loading, for operator-driven reprocessing of a committed batch.
	Reload bool
}

// NewCoordinator creates a coordinator bound to a warehouse store.
func NewCoordinator(store Store, normalizer *Normalizer) *Coordinator {
	return &Coordinator{store: store, normalizer: normalizer}
}

// RunBatch processes one source batch end to end and returns its report.
// Replaying an already committed batch is a no-op, never an error: the
// report comes back with status "no-op" and zero new rows. Per-batch
// failures are returned alongside a "failed" report after the ledger entry
// is marked, so the batch can be retried from scratch.
func (c *Coordinator) RunBatch(ctx context.Context, batch SourceBatch) (*RunReport, error) {
	started := time.Now()
	report := &RunReport{
		BatchID: batch.ID,
		Source:  batch.Source,
	}

	state := StatePending
	logging.Info().
		Str("batch_id", batch.ID).
		Str("source", batch.Source).
		Msg("Starting batch")

	if c.Reload {
		if err := c.store.DeleteBatchFacts(ctx, batch.ID); err != nil {
			return c.fail(ctx, report, state, started, fmt.Errorf("reload: %w", err))
		}
	}

	if err := c.store.BeginBatch(ctx, batch.ID, batch.Source); err != nil {
		if errors.Is(err, ErrAlreadyCommitted) {
			report.Status = StatusNoop
			report.Elapsed = time.Since(started)
			metrics.ObserveBatch(report)
			logging.Info().
				Str("batch_id", batch.ID).
				Msg("Batch already committed, skipping")
			return report, nil
		}
		return c.fail(ctx, report, state, started, fmt.Errorf("begin batch: %w", err))
	}

	// Normalize. Input order is preserved for reject accounting; the raw
	// sequence is one-pass, so normalized records are materialized here.
	state = StateNormalizing
	var normalized []*NormalizedRecord
	for raw, err := range batch.Records {
		if err != nil {
			report.recordReject(RejectedRecord{
				Row:    raw.Row,
				Reason: ReasonInvalidType,
				Detail: err.Error(),
			})
			continue
		}
		rec, rej := c.normalizer.Normalize(raw)
		if rej != nil {
			report.recordReject(*rej)
			continue
		}
		normalized = append(normalized, rec)
	}
	report.Counts.Normalized = len(normalized)

	// Resolve surrogate keys and assemble the pending fact set. A store
	// outage aborts the batch; a record-level resolution failure only
	// rejects that record.
	state = StateResolving
	resolver := NewKeyResolver(c.store)
	loader := NewFactLoader(c.store, batch.ID)
	for _, rec := range normalized {
		keys, err := resolver.Resolve(ctx, rec)
		if err != nil {
			if errors.Is(err, ErrDimensionUnavailable) {
				return c.fail(ctx, report, state, started, err)
			}
			report.recordReject(RejectedRecord{
				Row:           rec.Row,
				TransactionID: rec.TransactionID,
				Reason:        ReasonDimensionUnresolved,
				Detail:        err.Error(),
			})
			continue
		}
		loader.Add(rec, keys)
	}

	// Write facts all-or-nothing, then flip the ledger. The ledger commit
	// is last: a crash between the two causes a full, safe reprocessing
	// of the batch on the next run.
	state = StateLoading
	if err := loader.Flush(ctx); err != nil {
		return c.fail(ctx, report, state, started, err)
	}
	report.Counts.FactsLoaded = loader.Pending()

	if err := c.store.CommitBatch(ctx, batch.ID, report.Counts); err != nil {
		return c.fail(ctx, report, state, started, fmt.Errorf("commit ledger: %w", err))
	}

	report.Status = StatusCommitted
	report.Elapsed = time.Since(started)
	metrics.ObserveBatch(report)
	logging.Info().
		Object("report", report).
		Msg("Batch committed")
	return report, nil
}

// fail marks the ledger entry failed and finalizes the report. The ledger
// write is best effort: if the store is down it is already unable to hold
// partial facts, and the entry stays in-progress for the next run to reopen.
func (c *Coordinator) fail(ctx context.Context, report *RunReport, state State, started time.Time, cause error) (*RunReport, error) {
	report.Status = StatusFailed
	report.Error = cause.Error()
	report.Elapsed = time.Since(started)

	if err := c.store.FailBatch(ctx, report.BatchID, cause.Error()); err != nil {
		logging.Warn().
			Err(err).
			Str("batch_id", report.BatchID).
			Msg("Could not record batch failure in ledger")
	}

	metrics.ObserveBatch(report)
	logging.Error().
		Err(cause).
		Str("batch_id", report.BatchID).
		Str("state", string(state)).
		Msg("Batch failed")
	return report, cause
}
