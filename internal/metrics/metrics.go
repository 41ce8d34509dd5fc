//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package metrics exposes Prometheus counters for batch loads. The run
// command serves them when --metrics-addr is set; otherwise they only
// accumulate in-process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "martload",
		Name:      "batches_total",
		Help:      "Batches processed, by outcome status.",
	}, []string{"status"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "martload",
		Name:      "records_total",
		Help:      "Records processed, by outcome.",
	}, []string{"outcome"})

	rejectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "martload",
		Name:      "rejects_total",
		Help:      "Rejected records, by reason code.",
	}, []string{"reason"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "martload",
		Name:      "batch_duration_seconds",
		Help:      "Wall-clock duration of batch loads.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// BatchReport is the slice of a run report the metrics layer needs,
// defined here to keep the dependency pointing from pipeline to metrics.
type BatchReport interface {
	MetricsView() (status string, normalized, rejected, factsLoaded int, rejectReasons map[string]int, seconds float64)
}

// ObserveBatch records one finished batch.
func ObserveBatch(report BatchReport) {
	status, normalized, rejected, factsLoaded, reasons, seconds := report.MetricsView()

	batchesTotal.WithLabelValues(status).Inc()
	recordsTotal.WithLabelValues("normalized").Add(float64(normalized))
	recordsTotal.WithLabelValues("rejected").Add(float64(rejected))
	recordsTotal.WithLabelValues("fact_loaded").Add(float64(factsLoaded))
	for reason, count := range reasons {
		rejectsTotal.WithLabelValues(reason).Add(float64(count))
	}
	batchDuration.Observe(seconds)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
