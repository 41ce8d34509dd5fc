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
	"time"

	"github.com/rs/zerolog"
)

// Batch outcome statuses surfaced in the RunReport.
const (
	StatusCommitted = "committed"
	StatusNoop      = "no-op"
	StatusFailed    = "failed"
)

// RunReport is the sole output surface of a batch run, for both success
// and failure.
type RunReport struct {
	BatchID       string
	Source        string
	Status        string
	Counts        Counts
	RejectReasons map[RejectReason]int
	Rejected      []RejectedRecord
	Elapsed       time.Duration
	Error         string
}

// MarshalZerologObject lets a report be logged as a structured event.
func (r *RunReport) MarshalZerologObject(e *zerolog.Event) {
	e.Str("batch_id", r.BatchID).
		Str("source", r.Source).
		Str("status", r.Status).
		Int("normalized", r.Counts.Normalized).
		Int("rejected", r.Counts.Rejected).
		Int("facts_loaded", r.Counts.FactsLoaded).
		Dur("elapsed", r.Elapsed)
	for reason, count := range r.RejectReasons {
		e.Int("reject_"+string(reason), count)
	}
	if r.Error != "" {
		e.Str("error", r.Error)
	}
}

// MetricsView flattens the report for the metrics layer.
func (r *RunReport) MetricsView() (string, int, int, int, map[string]int, float64) {
	reasons := make(map[string]int, len(r.RejectReasons))
	for reason, count := range r.RejectReasons {
		reasons[string(reason)] = count
	}
	return r.Status, r.Counts.Normalized, r.Counts.Rejected,
		r.Counts.FactsLoaded, reasons, r.Elapsed.Seconds()
}

func (r *RunReport) recordReject(rej RejectedRecord) {
	if r.RejectReasons == nil {
		r.RejectReasons = make(map[RejectReason]int)
	}
	r.RejectReasons[rej.Reason]++
	r.Rejected = append(r.Rejected, rej)
	r.Counts.Rejected++
}
