package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tenders (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	pricing_level TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_items (
	id TEXT PRIMARY KEY,
	tender_id TEXT NOT NULL REFERENCES tenders(id) ON DELETE CASCADE,
	item_number TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	quantity DOUBLE PRECISION,
	unit TEXT NOT NULL DEFAULT '',
	section TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_catalog_items_tender ON catalog_items(tender_id, item_number, position);

CREATE TABLE IF NOT EXISTS bids (
	id TEXT PRIMARY KEY,
	tender_id TEXT NOT NULL REFERENCES tenders(id),
	bidder TEXT NOT NULL,
	source_file TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bids_tender_status ON bids(tender_id, status);

CREATE TABLE IF NOT EXISTS bid_lines (
	bid_id TEXT NOT NULL REFERENCES bids(id) ON DELETE CASCADE,
	row_index INTEGER NOT NULL,
	item_number TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	quantity DOUBLE PRECISION,
	unit TEXT NOT NULL DEFAULT '',
	unit_rate DOUBLE PRECISION,
	amount DOUBLE PRECISION,
	currency TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (bid_id, row_index)
);

CREATE TABLE IF NOT EXISTS pricing_records (
	id TEXT PRIMARY KEY,
	tender_id TEXT NOT NULL,
	bid_id TEXT NOT NULL REFERENCES bids(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	row_index INTEGER,
	catalog_item_id TEXT,
	item_number TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	quantity DOUBLE PRECISION,
	unit TEXT NOT NULL DEFAULT '',
	unit_rate DOUBLE PRECISION,
	amount DOUBLE PRECISION,
	currency TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	needs_review BOOLEAN NOT NULL DEFAULT FALSE,
	included_in_total BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pricing_records_bid ON pricing_records(bid_id, position);
`

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
