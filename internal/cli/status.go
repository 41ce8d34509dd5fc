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

	"github.com/spf13/cobra"

	"github.com/martload/martload/internal/db"
	"github.com/martload/martload/internal/warehouse"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent batches from the run ledger",
	Long: `List the most recent entries of the run ledger: which extracts have
been loaded, which failed and why, and the row counts of each batch.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20,
		"maximum number of ledger entries to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	initialized, err := db.GetMetadataValue(ctx, pool, "initialized_at")
	if err != nil {
		return fmt.Errorf("warehouse not initialized, run 'martload init' first: %w", err)
	}
	schemaVersion, _ := db.GetMetadataValue(ctx, pool, "version")
	cmd.Printf("Warehouse initialized %s (martload %s)\n\n", initialized, schemaVersion)

	entries, err := warehouse.NewStore(pool).ListLedger(ctx, statusLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("Ledger is empty; no batches loaded yet.")
		return nil
	}

	cmd.Printf("%-18s %-12s %-10s %-10s %-12s %s\n",
		"BATCH", "STATUS", "NORMALIZED", "REJECTED", "FACTS", "SOURCE")
	for _, e := range entries {
		cmd.Printf("%-18s %-12s %-10d %-10d %-12d %s\n",
			e.BatchID, e.Status, e.Normalized, e.Rejected, e.FactsLoaded, e.Source)
		if e.Reason != "" {
			cmd.Printf("  reason: %s\n", e.Reason)
		}
	}
	return nil
}
