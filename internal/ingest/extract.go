//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package ingest reads retail-sales CSV extracts and hands them to the
// loading engine as identified source batches. It is the input-boundary
// collaborator: header mapping and whitespace trimming happen here, all
// validation happens in the pipeline.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/martload/martload/internal/logging"
	"github.com/martload/martload/internal/pipeline"
)

// headerAliases maps the column names seen across extract generations to
// canonical field names. Headers are normalized (lowercase, underscores)
// before lookup, so "Order ID" and "order_id" both land on transaction_id.
var headerAliases = map[string]string{
	"transaction_id": pipeline.FieldTransactionID,
	"order_id":       pipeline.FieldTransactionID,
	"timestamp":      pipeline.FieldTimestamp,
	"order_date":     pipeline.FieldTimestamp,
	"date":           pipeline.FieldTimestamp,
	"customer_email": pipeline.FieldCustomerEmail,
	"customer_id":    pipeline.FieldCustomerEmail,
	"email":          pipeline.FieldCustomerEmail,
	"customer_name":  pipeline.FieldCustomerName,
	"segment":        pipeline.FieldSegment,
	"city":           pipeline.FieldCity,
	"country":        pipeline.FieldCountry,
	"product_sku":    pipeline.FieldProductSKU,
	"product_id":     pipeline.FieldProductSKU,
	"sku":            pipeline.FieldProductSKU,
	"product_name":   pipeline.FieldProductName,
	"category":       pipeline.FieldCategory,
	"sub_category":   pipeline.FieldSubcategory,
	"subcategory":    pipeline.FieldSubcategory,
	"quantity":       pipeline.FieldQuantity,
	"unit_price":     pipeline.FieldUnitPrice,
	"price":          pipeline.FieldUnitPrice,
	"sales":          pipeline.FieldUnitPrice,
	"currency":       pipeline.FieldCurrency,
}

// ReadExtract identifies a CSV extract and returns it as a SourceBatch.
// The batch id is the content checksum, so the same file content always
// maps to the same batch. The record sequence is lazy and single-pass;
// malformed CSV lines surface as per-record errors, not as a failed read.
func ReadExtract(path string) (pipeline.SourceBatch, error) {
	checksum, err := Checksum(path)
	if err != nil {
		return pipeline.SourceBatch{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return pipeline.SourceBatch{}, fmt.Errorf("open %s: %w", path, err)
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		f.Close()
		return pipeline.SourceBatch{}, fmt.Errorf("read header of %s: %w", path, err)
	}

	columns := mapHeader(header)
	logging.Debug().
		Str("source", path).
		Str("batch_id", checksum).
		Int("columns", len(columns)).
		Msg("Opened extract")

	records := func(yield func(pipeline.RawRecord, error) bool) {
		defer f.Close()
		row := 1 // header is row 1
		for {
			row++
			line, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				if !yield(pipeline.RawRecord{Row: row}, err) {
					return
				}
				continue
			}

			fields := make(map[string]string, len(columns))
			for i, name := range columns {
				if name == "" || i >= len(line) {
					continue
				}
				fields[name] = strings.TrimSpace(line[i])
			}
			if !yield(pipeline.RawRecord{Row: row, Fields: fields}, nil) {
				return
			}
		}
	}

	return pipeline.SourceBatch{
		ID:        checksum,
		Source:    path,
		ArrivedAt: time.Now(),
		Records:   iter.Seq2[pipeline.RawRecord, error](records),
	}, nil
}

// mapHeader resolves each CSV column to its canonical field name. Unknown
// columns map to "" and are dropped.
func mapHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, raw := range header {
		normalized := strings.ToLower(strings.TrimSpace(raw))
		normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
		columns[i] = headerAliases[normalized]
	}
	return columns
}
