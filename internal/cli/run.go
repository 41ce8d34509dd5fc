//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/martload/martload/internal/db"
	"github.com/martload/martload/internal/logging"
	"github.com/martload/martload/internal/metrics"
	"github.com/martload/martload/internal/warehouse"
)

var (
	runSource      string
	runInterval    int
	runMetricsAddr string
	runOnce        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interval scheduler over a source path",
	Long: `Rescan a source path or glob at a fixed interval and load every extract
found. The run ledger makes rescans of unchanged files no-ops, so the loop
is safe to leave running against a directory that extract drops land in.

Cancellation (Ctrl+C) takes effect between batches; an in-flight fact
transaction is always allowed to complete or abort cleanly.

Example:
  martload run --source "extracts/*.csv" --interval 60
  martload run --source extracts/sales.csv --once`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "",
		"file path or glob of CSV extracts to scan")
	runCmd.Flags().IntVar(&runInterval, "interval", 0,
		"rescan interval in minutes")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "",
		"address to serve Prometheus metrics on (e.g., :9187)")
	runCmd.Flags().BoolVar(&runOnce, "once", false,
		"scan and load once, then exit")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runSource != "" {
		cfg.Run.Source = runSource
	}
	if runInterval > 0 {
		cfg.Run.Interval = runInterval
	}
	if runMetricsAddr != "" {
		cfg.Run.MetricsAddr = runMetricsAddr
	}

	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	store := warehouse.NewStore(pool)

	if cfg.Run.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: cfg.Run.MetricsAddr, Handler: mux}
		go func() {
			logging.Info().
				Str("addr", cfg.Run.MetricsAddr).
				Msg("Serving metrics")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer server.Close()
	}

	scan := func() {
		paths, err := filepath.Glob(cfg.Run.Source)
		if err != nil {
			logging.Error().Err(err).Str("source", cfg.Run.Source).Msg("Bad source glob")
			return
		}
		sort.Strings(paths)
		if len(paths) == 0 {
			logging.Debug().Str("source", cfg.Run.Source).Msg("No extracts found")
			return
		}

		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			// Each extract is one complete, independent batch; a failed
			// batch does not stop the rest of the scan.
			if _, err := loadExtract(ctx, store, path); err != nil {
				logging.Error().Err(err).Str("source", path).Msg("Extract load failed")
			}
		}
	}

	logging.Info().
		Str("source", cfg.Run.Source).
		Int("interval_minutes", cfg.Run.Interval).
		Msg("Scheduler started")

	// First scan runs immediately, like the initial load of the old
	// pipeline's scheduler.
	scan()
	if runOnce {
		return nil
	}

	ticker := time.NewTicker(time.Duration(cfg.Run.Interval) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Scheduler stopped")
			return nil
		case <-ticker.C:
			scan()
		}
	}
}
