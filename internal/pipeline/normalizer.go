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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts accepted on the input boundary. Extracts from the old
// pipeline used day-first dates, newer ones ISO.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
}

// requiredFields must be present and non-empty for a record to normalize.
var requiredFields = []string{
	FieldTransactionID,
	FieldTimestamp,
	FieldCustomerEmail,
	FieldProductSKU,
	FieldQuantity,
	FieldUnitPrice,
}

// Normalizer validates and coerces raw cleaned records into
// NormalizedRecords. One bad row never aborts a batch: validation
// failures produce RejectedRecords with a reason code instead.
type Normalizer struct {
	// DefaultCurrency is applied to rows that omit a currency code.
	DefaultCurrency string
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(defaultCurrency string) *Normalizer {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Normalizer{DefaultCurrency: defaultCurrency}
}

// Normalize validates one raw record. Exactly one of the results is
// non-nil.
func (n *Normalizer) Normalize(raw RawRecord) (*NormalizedRecord, *RejectedRecord) {
	fields := make(map[string]string, len(raw.Fields))
	for k, v := range raw.Fields {
		fields[k] = strings.TrimSpace(v)
	}

	txID := fields[FieldTransactionID]

	for _, name := range requiredFields {
		if fields[name] == "" {
			return nil, &RejectedRecord{
				Row:           raw.Row,
				TransactionID: txID,
				Reason:        ReasonMissingField,
				Detail:        name,
			}
		}
	}

	ts, err := parseTimestamp(fields[FieldTimestamp])
	if err != nil {
		return nil, reject(raw.Row, txID, ReasonInvalidType,
			fmt.Sprintf("%s: %v", FieldTimestamp, err))
	}

	quantity, err := strconv.Atoi(fields[FieldQuantity])
	if err != nil {
		return nil, reject(raw.Row, txID, ReasonInvalidType,
			fmt.Sprintf("%s: %q is not an integer", FieldQuantity, fields[FieldQuantity]))
	}

	unitPrice, err := strconv.ParseFloat(fields[FieldUnitPrice], 64)
	if err != nil || math.IsNaN(unitPrice) || math.IsInf(unitPrice, 0) {
		return nil, reject(raw.Row, txID, ReasonInvalidType,
			fmt.Sprintf("%s: %q is not a number", FieldUnitPrice, fields[FieldUnitPrice]))
	}

	if quantity < 0 {
		return nil, reject(raw.Row, txID, ReasonNegativeMeasure,
			fmt.Sprintf("%s: %d", FieldQuantity, quantity))
	}
	if unitPrice < 0 {
		return nil, reject(raw.Row, txID, ReasonNegativeMeasure,
			fmt.Sprintf("%s: %v", FieldUnitPrice, unitPrice))
	}

	currency := strings.ToUpper(fields[FieldCurrency])
	if currency == "" {
		currency = n.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, reject(raw.Row, txID, ReasonInvalidType,
			fmt.Sprintf("%s: %q is not a 3-letter code", FieldCurrency, currency))
	}

	return &NormalizedRecord{
		Row:           raw.Row,
		TransactionID: txID,
		Timestamp:     ts,
		Customer: Customer{
			Email:   fields[FieldCustomerEmail],
			Name:    fields[FieldCustomerName],
			Segment: fields[FieldSegment],
			City:    fields[FieldCity],
			Country: fields[FieldCountry],
		},
		Product: Product{
			SKU:         fields[FieldProductSKU],
			Name:        fields[FieldProductName],
			Category:    fields[FieldCategory],
			Subcategory: fields[FieldSubcategory],
		},
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Currency:  currency,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q does not match a known layout", value)
}

func reject(row int, txID string, reason RejectReason, detail string) *RejectedRecord {
	return &RejectedRecord{
		Row:           row,
		TransactionID: txID,
		Reason:        reason,
		Detail:        detail,
	}
}
