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
	"github.com/spf13/cobra"

	"github.com/martload/martload/internal/datagen"
)

var (
	sampleRows    int
	sampleOutput  string
	sampleSeed    uint64
	sampleBadRate float64
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a synthetic retail-sales CSV extract",
	Long: `Write a synthetic sales extract with repeated customer and product
natural keys, suitable for demos and for exercising the loader. A
non-zero --bad-rate sprinkles in malformed rows to feed the reject path.

Example:
  martload sample --rows 5000 --output extracts/demo.csv
  martload sample --rows 1000 --seed 42 --bad-rate 0.05`,
	RunE: runSample,
}

func init() {
	sampleCmd.Flags().IntVar(&sampleRows, "rows", 0,
		"number of sales lines to generate")
	sampleCmd.Flags().StringVar(&sampleOutput, "output", "",
		"path of the CSV file to write")
	sampleCmd.Flags().Uint64Var(&sampleSeed, "seed", 0,
		"seed for reproducible output (0 = random)")
	sampleCmd.Flags().Float64Var(&sampleBadRate, "bad-rate", 0,
		"fraction of rows written malformed (0.0 - 1.0)")
}

func runSample(cmd *cobra.Command, args []string) error {
	if sampleRows > 0 {
		cfg.Sample.Rows = sampleRows
	}
	if sampleOutput != "" {
		cfg.Sample.Output = sampleOutput
	}
	if sampleSeed != 0 {
		cfg.Sample.Seed = sampleSeed
	}
	if sampleBadRate > 0 {
		cfg.Sample.BadRate = sampleBadRate
	}

	if err := cfg.ValidateSample(); err != nil {
		return err
	}

	return datagen.WriteExtract(cfg.Sample.Output, datagen.ExtractConfig{
		Rows:    cfg.Sample.Rows,
		Seed:    cfg.Sample.Seed,
		BadRate: cfg.Sample.BadRate,
	})
}
