//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestWriteExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.csv")
	if err := WriteExtract(path, ExtractConfig{Rows: 50, Seed: 42}); err != nil {
		t.Fatalf("WriteExtract failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 51 {
		t.Fatalf("Expected 51 rows including header, got %d", len(rows))
	}

	header := rows[0]
	if header[0] != "transaction_id" || header[2] != "customer_email" {
		t.Errorf("Unexpected header: %v", header)
	}

	for i, row := range rows[1:] {
		if len(row) != len(header) {
			t.Errorf("Row %d has %d fields, header has %d", i+2, len(row), len(header))
		}
	}
}

func TestWriteExtractSeedReproducible(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")

	if err := WriteExtract(a, ExtractConfig{Rows: 20, Seed: 7}); err != nil {
		t.Fatalf("WriteExtract failed: %v", err)
	}
	if err := WriteExtract(b, ExtractConfig{Rows: 20, Seed: 7}); err != nil {
		t.Fatalf("WriteExtract failed: %v", err)
	}

	contentA, err := os.ReadFile(a)
	if err != nil {
		t.Fatal(err)
	}
	contentB, err := os.ReadFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(contentA) != string(contentB) {
		t.Error("Same seed produced different extracts")
	}
}

func TestWriteExtractKeyPoolsRepeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.csv")
	if err := WriteExtract(path, ExtractConfig{Rows: 100, Seed: 3, Customers: 5, Products: 5}); err != nil {
		t.Fatalf("WriteExtract failed: %v", err)
	}

	rows := readCSV(t, path)
	emails := make(map[string]bool)
	skus := make(map[string]bool)
	for _, row := range rows[1:] {
		emails[row[2]] = true
		skus[row[7]] = true
	}
	if len(emails) > 5 {
		t.Errorf("Expected at most 5 distinct customers, got %d", len(emails))
	}
	if len(skus) > 5 {
		t.Errorf("Expected at most 5 distinct products, got %d", len(skus))
	}
}

func TestWriteExtractBadRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extract.csv")
	if err := WriteExtract(path, ExtractConfig{Rows: 200, Seed: 9, BadRate: 1.0}); err != nil {
		t.Fatalf("WriteExtract failed: %v", err)
	}

	rows := readCSV(t, path)
	damaged := 0
	for _, row := range rows[1:] {
		if row[2] == "" || row[12] == "n/a" || row[1] == "someday" || row[11][0] == '-' {
			damaged++
		}
	}
	if damaged != 200 {
		t.Errorf("BadRate 1.0 damaged %d of 200 rows", damaged)
	}
}
