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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() map[string]string {
	return map[string]string{
		FieldTransactionID: "TX-1001",
		FieldTimestamp:     "2026-08-14",
		FieldCustomerEmail: "a@x.com",
		FieldCustomerName:  "Ada Lovelace",
		FieldSegment:       "Consumer",
		FieldCity:          "London",
		FieldCountry:       "UK",
		FieldProductSKU:    "S1",
		FieldProductName:   "Gadget",
		FieldCategory:      "Electronics",
		FieldSubcategory:   "Accessories",
		FieldQuantity:      "2",
		FieldUnitPrice:     "10.00",
		FieldCurrency:      "usd",
	}
}

func TestNormalizeValidRecord(t *testing.T) {
	n := NewNormalizer("USD")

	rec, rej := n.Normalize(RawRecord{Row: 2, Fields: validFields()})
	require.Nil(t, rej)
	require.NotNil(t, rec)

	assert.Equal(t, "TX-1001", rec.TransactionID)
	assert.Equal(t, time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC), rec.Timestamp)
	assert.Equal(t, "a@x.com", rec.Customer.Email)
	assert.Equal(t, "S1", rec.Product.SKU)
	assert.Equal(t, 2, rec.Quantity)
	assert.Equal(t, 10.00, rec.UnitPrice)
	assert.Equal(t, "USD", rec.Currency, "currency should be uppercased")
}

func TestNormalizeTrimsWhitespace(t *testing.T) {
	n := NewNormalizer("USD")
	fields := validFields()
	fields[FieldCustomerEmail] = "  a@x.com  "
	fields[FieldProductSKU] = " S1 "

	rec, rej := n.Normalize(RawRecord{Row: 2, Fields: fields})
	require.Nil(t, rej)
	assert.Equal(t, "a@x.com", rec.Customer.Email)
	assert.Equal(t, "S1", rec.Product.SKU)
}

func TestNormalizeMissingFields(t *testing.T) {
	n := NewNormalizer("USD")

	for _, field := range []string{
		FieldTransactionID, FieldTimestamp, FieldCustomerEmail,
		FieldProductSKU, FieldQuantity, FieldUnitPrice,
	} {
		t.Run(field, func(t *testing.T) {
			fields := validFields()
			delete(fields, field)

			rec, rej := n.Normalize(RawRecord{Row: 3, Fields: fields})
			assert.Nil(t, rec)
			require.NotNil(t, rej)
			assert.Equal(t, ReasonMissingField, rej.Reason)
			assert.Equal(t, field, rej.Detail)
			assert.Equal(t, 3, rej.Row)
		})
	}
}

func TestNormalizeBlankFieldCountsAsMissing(t *testing.T) {
	n := NewNormalizer("USD")
	fields := validFields()
	fields[FieldCustomerEmail] = "   "

	rec, rej := n.Normalize(RawRecord{Row: 2, Fields: fields})
	assert.Nil(t, rec)
	require.NotNil(t, rej)
	assert.Equal(t, ReasonMissingField, rej.Reason)
}

func TestNormalizeInvalidTypes(t *testing.T) {
	n := NewNormalizer("USD")

	tests := []struct {
		name  string
		field string
		value string
	}{
		{"fractional quantity", FieldQuantity, "2.5"},
		{"word quantity", FieldQuantity, "two"},
		{"word price", FieldUnitPrice, "free"},
		{"nan price", FieldUnitPrice, "NaN"},
		{"bad timestamp", FieldTimestamp, "someday"},
		{"long currency", FieldCurrency, "DOLLARS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			fields[tt.field] = tt.value

			rec, rej := n.Normalize(RawRecord{Row: 2, Fields: fields})
			assert.Nil(t, rec)
			require.NotNil(t, rej)
			assert.Equal(t, ReasonInvalidType, rej.Reason)
			assert.Equal(t, "TX-1001", rej.TransactionID)
		})
	}
}

func TestNormalizeNegativeMeasures(t *testing.T) {
	n := NewNormalizer("USD")

	for field, value := range map[string]string{
		FieldQuantity:  "-1",
		FieldUnitPrice: "-5.00",
	} {
		fields := validFields()
		fields[field] = value

		rec, rej := n.Normalize(RawRecord{Row: 2, Fields: fields})
		assert.Nil(t, rec)
		require.NotNil(t, rej)
		assert.Equal(t, ReasonNegativeMeasure, rej.Reason)
	}
}

func TestNormalizeZeroMeasuresAccepted(t *testing.T) {
	n := NewNormalizer("USD")
	fields := validFields()
	fields[FieldQuantity] = "0"
	fields[FieldUnitPrice] = "0"

	rec, rej := n.Normalize(RawRecord{Row: 2, Fields: fields})
	require.Nil(t, rej)
	assert.Equal(t, 0, rec.Quantity)
	assert.Equal(t, 0.0, rec.UnitPrice)
}

func TestNormalizeDefaultCurrency(t *testing.T) {
	n := NewNormalizer("EUR")
	fields := validFields()
	delete(fields, FieldCurrency)

	rec, rej := n.Normalize(RawRecord{Row: 2, Fields: fields})
	require.Nil(t, rej)
	assert.Equal(t, "EUR", rec.Currency)
}

func TestNormalizeTimestampLayouts(t *testing.T) {
	n := NewNormalizer("USD")

	for value, want := range map[string]time.Time{
		"2026-08-14":           time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC),
		"2026-08-14 09:30:00":  time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
		"14/08/2026":           time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC),
		"2026-08-14T09:30:00Z": time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
	} {
		fields := validFields()
		fields[FieldTimestamp] = value

		rec, rej := n.Normalize(RawRecord{Row: 2, Fields: fields})
		require.Nil(t, rej, "layout %q", value)
		assert.True(t, rec.Timestamp.Equal(want), "layout %q", value)
	}
}
