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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martload/martload/internal/logging"
	"github.com/martload/martload/internal/pipeline"
)

// Upserts return the surrogate key whether the natural key was inserted or
// already present; the version marker is bumped only when attributes
// actually drifted (type-1 overwrite, last writer wins).
const resolveCustomerSQL = `
INSERT INTO dim_customer (email, customer_name, segment, city, country)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (email) DO UPDATE SET
    customer_name = EXCLUDED.customer_name,
    segment       = EXCLUDED.segment,
    city          = EXCLUDED.city,
    country       = EXCLUDED.country,
    version       = dim_customer.version + CASE WHEN
        (dim_customer.customer_name, dim_customer.segment, dim_customer.city, dim_customer.country)
        IS DISTINCT FROM
        (EXCLUDED.customer_name, EXCLUDED.segment, EXCLUDED.city, EXCLUDED.country)
        THEN 1 ELSE 0 END,
    last_seen     = now()
RETURNING customer_sk`

const resolveProductSQL = `
INSERT INTO dim_product (sku, product_name, category, subcategory)
VALUES ($1, $2, $3, $4)
ON CONFLICT (sku) DO UPDATE SET
    product_name = EXCLUDED.product_name,
    category     = EXCLUDED.category,
    subcategory  = EXCLUDED.subcategory,
    version      = dim_product.version + CASE WHEN
        (dim_product.product_name, dim_product.category, dim_product.subcategory)
        IS DISTINCT FROM
        (EXCLUDED.product_name, EXCLUDED.category, EXCLUDED.subcategory)
        THEN 1 ELSE 0 END,
    last_seen    = now()
RETURNING product_sk`

// Date attributes are derived from the date itself, so the conflict arm
// only needs to carry the RETURNING clause.
const resolveDateSQL = `
INSERT INTO dim_date (date, day, month, year, quarter, day_of_week, is_weekend)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (date) DO UPDATE SET date = EXCLUDED.date
RETURNING date_sk`

const insertFactSQL = `
INSERT INTO fact_sales
    (transaction_id, customer_sk, product_sk, date_sk, quantity, unit_price, amount, currency, batch_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// beginBatchSQL opens or reopens a ledger entry. Committed entries do not
// match the WHERE clause, so the caller sees no row and reports the
// idempotency short-circuit.
const beginBatchSQL = `
INSERT INTO load_ledger (batch_id, status, source)
VALUES ($1, 'in-progress', $2)
ON CONFLICT (batch_id) DO UPDATE SET
    status       = 'in-progress',
    source       = EXCLUDED.source,
    normalized   = 0,
    rejected     = 0,
    facts_loaded = 0,
    reason       = '',
    started_at   = now(),
    finished_at  = NULL
WHERE load_ledger.status <> 'committed'
RETURNING batch_id`

const commitBatchSQL = `
UPDATE load_ledger SET
    status = 'committed', normalized = $2, rejected = $3, facts_loaded = $4,
    reason = '', finished_at = now()
WHERE batch_id = $1`

const failBatchSQL = `
UPDATE load_ledger SET
    status = 'failed', reason = $2, finished_at = now()
WHERE batch_id = $1`

// Store is the PostgreSQL implementation of the pipeline's warehouse
// contract.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ResolveCustomer upserts the customer row and returns its surrogate key.
func (s *Store) ResolveCustomer(ctx context.Context, c pipeline.Customer) (int64, error) {
	var sk int64
	err := s.pool.QueryRow(ctx, resolveCustomerSQL,
		c.Email, c.Name, c.Segment, c.City, c.Country).Scan(&sk)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", pipeline.ErrDimensionUnavailable, err)
	}
	return sk, nil
}

// ResolveProduct upserts the product row and returns its surrogate key.
func (s *Store) ResolveProduct(ctx context.Context, p pipeline.Product) (int64, error) {
	var sk int64
	err := s.pool.QueryRow(ctx, resolveProductSQL,
		p.SKU, p.Name, p.Category, p.Subcategory).Scan(&sk)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", pipeline.ErrDimensionUnavailable, err)
	}
	return sk, nil
}

// ResolveDate upserts the date row for the given day and returns its
// surrogate key.
func (s *Store) ResolveDate(ctx context.Context, day time.Time) (int64, error) {
	day = day.UTC()
	weekday := int(day.Weekday())

	var sk int64
	err := s.pool.QueryRow(ctx, resolveDateSQL,
		day, day.Day(), int(day.Month()), day.Year(),
		(int(day.Month())-1)/3+1, weekday,
		weekday == 0 || weekday == 6).Scan(&sk)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", pipeline.ErrDimensionUnavailable, err)
	}
	return sk, nil
}

// WriteFacts inserts the batch's full pending set inside one transaction.
// Any facts the batch left behind in a previous attempt are cleared inside
// the same transaction, so a retry after a crash between the fact commit
// and the ledger commit replaces them instead of duplicating them.
func (s *Store) WriteFacts(ctx context.Context, batchID string, facts []pipeline.FactRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fact transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM fact_sales WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("clear prior batch facts: %w", err)
	}

	batch := &pgx.Batch{}
	for _, f := range facts {
		batch.Queue(insertFactSQL,
			f.TransactionID, f.CustomerSK, f.ProductSK, f.DateSK,
			f.Quantity, f.UnitPrice, f.Amount, f.Currency, f.BatchID)
	}

	br := tx.SendBatch(ctx, batch)
	for range facts {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert fact: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close fact batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit fact transaction: %w", err)
	}

	logging.Debug().
		Str("batch_id", batchID).
		Int("facts", len(facts)).
		Msg("Fact transaction committed")
	return nil
}

// DeleteBatchFacts removes a batch's facts and its ledger entry in one
// transaction, making room for an explicit reload.
func (s *Store) DeleteBatchFacts(ctx context.Context, batchID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reload transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM fact_sales WHERE batch_id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("delete batch facts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM load_ledger WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reload transaction: %w", err)
	}

	logging.Info().
		Str("batch_id", batchID).
		Int64("facts_deleted", tag.RowsAffected()).
		Msg("Batch facts deleted for reload")
	return nil
}

// BeginBatch opens the batch's ledger entry, returning ErrAlreadyCommitted
// for batches that have already been fully loaded.
func (s *Store) BeginBatch(ctx context.Context, batchID, source string) error {
	var id string
	err := s.pool.QueryRow(ctx, beginBatchSQL, batchID, source).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.ErrAlreadyCommitted
	}
	if err != nil {
		return fmt.Errorf("begin ledger entry: %w", err)
	}
	return nil
}

// CommitBatch flips the ledger entry to committed with final counts.
func (s *Store) CommitBatch(ctx context.Context, batchID string, counts pipeline.Counts) error {
	tag, err := s.pool.Exec(ctx, commitBatchSQL, batchID,
		counts.Normalized, counts.Rejected, counts.FactsLoaded)
	if err != nil {
		return fmt.Errorf("commit ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no open ledger entry for batch %s", batchID)
	}
	return nil
}

// FailBatch records the batch failure and its reason in the ledger.
func (s *Store) FailBatch(ctx context.Context, batchID, reason string) error {
	_, err := s.pool.Exec(ctx, failBatchSQL, batchID, reason)
	if err != nil {
		return fmt.Errorf("fail ledger entry: %w", err)
	}
	return nil
}

// LedgerEntry is one row of the run ledger.
type LedgerEntry struct {
	BatchID     string
	Status      string
	Source      string
	Normalized  int
	Rejected    int
	FactsLoaded int
	Reason      string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// ListLedger returns the most recent ledger entries, newest first.
func (s *Store) ListLedger(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
        SELECT batch_id, status, source, normalized, rejected, facts_loaded,
               reason, started_at, finished_at
        FROM load_ledger
        ORDER BY started_at DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.BatchID, &e.Status, &e.Source, &e.Normalized,
			&e.Rejected, &e.FactsLoaded, &e.Reason, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
