//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package warehouse implements the PostgreSQL star schema store behind the
// loading engine, plus an in-memory variant for tests and dry runs.
package warehouse

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Star schema for retail sales: three dimensions, one fact table, and the
// run ledger that makes batch loads idempotent. Surrogate keys are
// store-assigned identity columns; natural-key uniqueness constraints are
// the sole concurrency-safety mechanism for dimension creation races.
const createSchemaSQL = `
-- Customer Dimension
CREATE TABLE IF NOT EXISTS dim_customer (
    customer_sk   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    customer_name TEXT NOT NULL DEFAULT '',
    segment       TEXT NOT NULL DEFAULT '',
    city          TEXT NOT NULL DEFAULT '',
    country       TEXT NOT NULL DEFAULT '',
    version       INTEGER NOT NULL DEFAULT 1,
    last_seen     TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Product Dimension
CREATE TABLE IF NOT EXISTS dim_product (
    product_sk   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    sku          TEXT NOT NULL UNIQUE,
    product_name TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT '',
    subcategory  TEXT NOT NULL DEFAULT '',
    version      INTEGER NOT NULL DEFAULT 1,
    last_seen    TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Date Dimension
CREATE TABLE IF NOT EXISTS dim_date (
    date_sk     BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    date        DATE NOT NULL UNIQUE,
    day         INTEGER NOT NULL,
    month       INTEGER NOT NULL,
    year        INTEGER NOT NULL,
    quarter     INTEGER NOT NULL,
    day_of_week INTEGER NOT NULL,
    is_weekend  BOOLEAN NOT NULL
);

-- Sales Fact
CREATE TABLE IF NOT EXISTS fact_sales (
    fact_id        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    customer_sk    BIGINT NOT NULL REFERENCES dim_customer(customer_sk),
    product_sk     BIGINT NOT NULL REFERENCES dim_product(product_sk),
    date_sk        BIGINT NOT NULL REFERENCES dim_date(date_sk),
    quantity       INTEGER NOT NULL,
    unit_price     NUMERIC(12,2) NOT NULL,
    amount         NUMERIC(14,2) NOT NULL,
    currency       CHAR(3) NOT NULL,
    batch_id       TEXT NOT NULL,
    loaded_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_fact_sales_batch ON fact_sales(batch_id);
CREATE INDEX IF NOT EXISTS idx_fact_sales_date ON fact_sales(date_sk);
CREATE INDEX IF NOT EXISTS idx_fact_sales_customer ON fact_sales(customer_sk);
CREATE INDEX IF NOT EXISTS idx_fact_sales_product ON fact_sales(product_sk);

-- Run Ledger
CREATE TABLE IF NOT EXISTS load_ledger (
    batch_id     TEXT PRIMARY KEY,
    status       TEXT NOT NULL CHECK (status IN ('in-progress', 'committed', 'failed')),
    source       TEXT NOT NULL DEFAULT '',
    normalized   INTEGER NOT NULL DEFAULT 0,
    rejected     INTEGER NOT NULL DEFAULT 0,
    facts_loaded INTEGER NOT NULL DEFAULT 0,
    reason       TEXT NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at  TIMESTAMPTZ
);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS load_ledger CASCADE;
DROP TABLE IF EXISTS fact_sales CASCADE;
DROP TABLE IF EXISTS dim_date CASCADE;
DROP TABLE IF EXISTS dim_product CASCADE;
DROP TABLE IF EXISTS dim_customer CASCADE;
`

// CreateSchema creates the warehouse schema.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the warehouse schema.
func DropSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, dropSchemaSQL)
	return err
}
