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
	"time"

	"github.com/spf13/cobra"

	"github.com/martload/martload/internal/db"
	"github.com/martload/martload/internal/ingest"
	"github.com/martload/martload/internal/pipeline"
	"github.com/martload/martload/internal/warehouse"
)

var (
	loadSource   string
	loadCurrency string
	loadReload   bool
	loadDryRun   bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load one CSV extract into the warehouse as a single batch",
	Long: `Load a retail-sales CSV extract as one idempotent batch. The batch id
is the checksum of the file content: loading the same content twice is a
no-op reported as such, never a duplicate.

Example:
  martload load --source extracts/sales_2026_08.csv
  martload load --source extracts/sales_2026_08.csv --reload
  martload load --source extracts/sales_2026_08.csv --dry-run`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadSource, "source", "",
		"path of the CSV extract to load")
	loadCmd.Flags().StringVar(&loadCurrency, "currency", "",
		"fallback currency code for rows without one (default: USD)")
	loadCmd.Flags().BoolVar(&loadReload, "reload", false,
		"delete the batch's existing facts and load it again")
	loadCmd.Flags().BoolVar(&loadDryRun, "dry-run", false,
		"run the full pipeline against an in-memory store")
}

func runLoad(cmd *cobra.Command, args []string) error {
	if loadSource != "" {
		cfg.Load.Source = loadSource
	}
	if loadCurrency != "" {
		cfg.Load.Currency = loadCurrency
	}
	if loadReload {
		cfg.Load.Reload = true
	}
	if loadDryRun {
		cfg.Load.DryRun = true
	}

	if err := cfg.ValidateLoad(); err != nil {
		return err
	}

	ctx := context.Background()

	var store pipeline.Store
	if cfg.Load.DryRun {
		store = warehouse.NewMemoryStore()
	} else {
		pool, err := db.Connect(ctx, cfg.Connection)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		store = warehouse.NewStore(pool)
	}

	report, err := loadExtract(ctx, store, cfg.Load.Source)
	if err != nil {
		return err
	}
	printReport(cmd, report)
	return nil
}

// loadExtract runs one extract through the pipeline.
func loadExtract(ctx context.Context, store pipeline.Store, source string) (*pipeline.RunReport, error) {
	batch, err := ingest.ReadExtract(source)
	if err != nil {
		return nil, err
	}

	coordinator := pipeline.NewCoordinator(store, pipeline.NewNormalizer(cfg.Load.Currency))
	coordinator.Reload = cfg.Load.Reload

	report, err := coordinator.RunBatch(ctx, batch)
	if err != nil {
		return report, fmt.Errorf("batch %s: %w", batch.ID, err)
	}
	return report, nil
}

func printReport(cmd *cobra.Command, r *pipeline.RunReport) {
	cmd.Printf("Batch %s (%s): %s\n", r.BatchID, r.Source, r.Status)
	cmd.Printf("  normalized:   %d\n", r.Counts.Normalized)
	cmd.Printf("  rejected:     %d\n", r.Counts.Rejected)
	cmd.Printf("  facts loaded: %d\n", r.Counts.FactsLoaded)
	for reason, count := range r.RejectReasons {
		cmd.Printf("    %s: %d\n", reason, count)
	}
	cmd.Printf("  elapsed:      %s\n", r.Elapsed.Round(time.Millisecond))
}
