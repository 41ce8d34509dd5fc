//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline implements the warehouse loading engine: normalizing
// cleaned sales records, resolving natural keys to surrogate keys, and
// writing facts as idempotent, all-or-nothing batches.
package pipeline

import (
	"iter"
	"time"
)

// Canonical field names for raw records handed over the input boundary.
const (
	FieldTransactionID = "transaction_id"
	FieldTimestamp     = "timestamp"
	FieldCustomerEmail = "customer_email"
	FieldCustomerName  = "customer_name"
	FieldSegment       = "segment"
	FieldCity          = "city"
	FieldCountry       = "country"
	FieldProductSKU    = "product_sku"
	FieldProductName   = "product_name"
	FieldCategory      = "category"
	FieldSubcategory   = "subcategory"
	FieldQuantity      = "quantity"
	FieldUnitPrice     = "unit_price"
	FieldCurrency      = "currency"
)

// RawRecord is one cleaned sales line as delivered by the ingestion
// collaborator: canonical field names mapped to raw string values.
type RawRecord struct {
	Row    int
	Fields map[string]string
}

// SourceBatch is one identified unit of ingestion. The record sequence is
// finite and single-pass; the batch id is a stable hash of the source
// content, so re-reading an unchanged file yields the same id.
type SourceBatch struct {
	ID        string
	Source    string
	ArrivedAt time.Time
	Records   iter.Seq2[RawRecord, error]
}

// Customer is the customer dimension's natural key plus its attribute set.
type Customer struct {
	Email   string
	Name    string
	Segment string
	City    string
	Country string
}

// Product is the product dimension's natural key plus its attribute set.
type Product struct {
	SKU         string
	Name        string
	Category    string
	Subcategory string
}

// NormalizedRecord is one sales transaction line after validation and
// type coercion. Every field is present and type-valid; candidates that
// fail validation become RejectedRecords instead.
type NormalizedRecord struct {
	Row           int
	TransactionID string
	Timestamp     time.Time
	Customer      Customer
	Product       Product
	Quantity      int
	UnitPrice     float64
	Currency      string
}

// RejectReason is a per-record rejection reason code.
type RejectReason string

const (
	ReasonMissingField        RejectReason = "missing_field"
	ReasonInvalidType         RejectReason = "invalid_type"
	ReasonNegativeMeasure     RejectReason = "negative_measure"
	ReasonDimensionUnresolved RejectReason = "dimension_unresolved"
)

// RejectedRecord is a NormalizedRecord candidate that failed validation or
// key resolution. It is counted in the run report and never persisted.
type RejectedRecord struct {
	Row           int
	TransactionID string
	Reason        RejectReason
	Detail        string
}

// Keys holds the resolved surrogate keys for one record.
type Keys struct {
	CustomerSK int64
	ProductSK  int64
	DateSK     int64
}

// FactRow is one immutable fact table row: surrogate keys, measures, and
// the originating batch id.
type FactRow struct {
	TransactionID string
	CustomerSK    int64
	ProductSK     int64
	DateSK        int64
	Quantity      int
	UnitPrice     float64
	Amount        float64
	Currency      string
	BatchID       string
}

// Counts summarizes a batch's outcome for the ledger and run report.
type Counts struct {
	Normalized  int
	Rejected    int
	FactsLoaded int
}
