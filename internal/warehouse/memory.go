//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/martload/martload/internal/pipeline"
)

type memCustomer struct {
	sk      int64
	attrs   pipeline.Customer
	version int
}

type memProduct struct {
	sk      int64
	attrs   pipeline.Product
	version int
}

// MemoryStore is an in-memory implementation of the pipeline's warehouse
// contract with the same surrogate-key and ledger semantics as the
// PostgreSQL store. It backs unit tests and the load command's dry-run
// mode. Error injection fields simulate store outages and transaction
// aborts.
type MemoryStore struct {
	mu sync.Mutex

	customers   map[string]*memCustomer
	products    map[string]*memProduct
	dates       map[string]int64
	nextCustSK  int64
	nextProdSK  int64
	nextDateSK  int64
	facts       []pipeline.FactRow
	ledger      map[string]*LedgerEntry

	// ResolveErr, when set, is returned by every Resolve call.
	ResolveErr error

	// WriteErr, when set, aborts WriteFacts before any row lands.
	WriteErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers: make(map[string]*memCustomer),
		products:  make(map[string]*memProduct),
		dates:     make(map[string]int64),
		ledger:    make(map[string]*LedgerEntry),
	}
}

// ResolveCustomer mirrors the upsert semantics of the PostgreSQL store.
func (m *MemoryStore) ResolveCustomer(ctx context.Context, c pipeline.Customer) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ResolveErr != nil {
		return 0, m.ResolveErr
	}
	if c.Email == "" {
		return 0, fmt.Errorf("customer natural key is empty")
	}

	row, ok := m.customers[c.Email]
	if !ok {
		m.nextCustSK++
		m.customers[c.Email] = &memCustomer{sk: m.nextCustSK, attrs: c, version: 1}
		return m.nextCustSK, nil
	}
	if row.attrs != c {
		row.attrs = c
		row.version++
	}
	return row.sk, nil
}

// ResolveProduct mirrors the upsert semantics of the PostgreSQL store.
func (m *MemoryStore) ResolveProduct(ctx context.Context, p pipeline.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ResolveErr != nil {
		return 0, m.ResolveErr
	}
	if p.SKU == "" {
		return 0, fmt.Errorf("product natural key is empty")
	}

	row, ok := m.products[p.SKU]
	if !ok {
		m.nextProdSK++
		m.products[p.SKU] = &memProduct{sk: m.nextProdSK, attrs: p, version: 1}
		return m.nextProdSK, nil
	}
	if row.attrs != p {
		row.attrs = p
		row.version++
	}
	return row.sk, nil
}

// ResolveDate maps a day to a surrogate key, creating it on first sight.
func (m *MemoryStore) ResolveDate(ctx context.Context, day time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ResolveErr != nil {
		return 0, m.ResolveErr
	}

	key := day.UTC().Format("2006-01-02")
	if sk, ok := m.dates[key]; ok {
		return sk, nil
	}
	m.nextDateSK++
	m.dates[key] = m.nextDateSK
	return m.nextDateSK, nil
}

// WriteFacts replaces the batch's rows with the given set, all or none.
// Clearing prior rows first mirrors the PostgreSQL store, so a retried
// batch whose earlier fact write survived never double-loads.
func (m *MemoryStore) WriteFacts(ctx context.Context, batchID string, facts []pipeline.FactRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return m.WriteErr
	}
	kept := m.facts[:0]
	for _, f := range m.facts {
		if f.BatchID != batchID {
			kept = append(kept, f)
		}
	}
	m.facts = append(kept, facts...)
	return nil
}

// DeleteBatchFacts removes a batch's facts and its ledger entry.
func (m *MemoryStore) DeleteBatchFacts(ctx context.Context, batchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.facts[:0]
	for _, f := range m.facts {
		if f.BatchID != batchID {
			kept = append(kept, f)
		}
	}
	m.facts = kept
	delete(m.ledger, batchID)
	return nil
}

// BeginBatch opens or reopens the ledger entry.
func (m *MemoryStore) BeginBatch(ctx context.Context, batchID, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.ledger[batchID]; ok && entry.Status == "committed" {
		return pipeline.ErrAlreadyCommitted
	}
	m.ledger[batchID] = &LedgerEntry{
		BatchID:   batchID,
		Status:    "in-progress",
		Source:    source,
		StartedAt: time.Now(),
	}
	return nil
}

// CommitBatch flips the ledger entry to committed.
func (m *MemoryStore) CommitBatch(ctx context.Context, batchID string, counts pipeline.Counts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.ledger[batchID]
	if !ok {
		return fmt.Errorf("no open ledger entry for batch %s", batchID)
	}
	now := time.Now()
	entry.Status = "committed"
	entry.Normalized = counts.Normalized
	entry.Rejected = counts.Rejected
	entry.FactsLoaded = counts.FactsLoaded
	entry.Reason = ""
	entry.FinishedAt = &now
	return nil
}

// FailBatch records the failure reason.
func (m *MemoryStore) FailBatch(ctx context.Context, batchID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.ledger[batchID]
	if !ok {
		return fmt.Errorf("no open ledger entry for batch %s", batchID)
	}
	now := time.Now()
	entry.Status = "failed"
	entry.Reason = reason
	entry.FinishedAt = &now
	return nil
}

// Facts returns a copy of all persisted fact rows.
func (m *MemoryStore) Facts() []pipeline.FactRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]pipeline.FactRow, len(m.facts))
	copy(out, m.facts)
	return out
}

// BatchFacts returns the persisted fact rows for one batch.
func (m *MemoryStore) BatchFacts(batchID string) []pipeline.FactRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pipeline.FactRow
	for _, f := range m.facts {
		if f.BatchID == batchID {
			out = append(out, f)
		}
	}
	return out
}

// Ledger returns the ledger entry for a batch, if any.
func (m *MemoryStore) Ledger(batchID string) (LedgerEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.ledger[batchID]
	if !ok {
		return LedgerEntry{}, false
	}
	return *entry, true
}

// CustomerVersion returns the version marker of a customer row, or 0 when
// the natural key is unknown.
func (m *MemoryStore) CustomerVersion(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.customers[email]; ok {
		return row.version
	}
	return 0
}

// CustomerAttrs returns the stored attribute set for a customer.
func (m *MemoryStore) CustomerAttrs(email string) (pipeline.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.customers[email]; ok {
		return row.attrs, true
	}
	return pipeline.Customer{}, false
}

// DimensionCounts returns the number of rows in each dimension.
func (m *MemoryStore) DimensionCounts() (customers, products, dates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.customers), len(m.products), len(m.dates)
}
