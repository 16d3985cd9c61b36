package database

import (
	"context"
	"fmt"
)

// schema is applied at startup. Statements are idempotent so a restart
// against an already-initialized database is a no-op.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS scrape_run (
		id UUID PRIMARY KEY,
		retailer TEXT NOT NULL,
		category TEXT NOT NULL,
		urls TEXT[] NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		product_count INT NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_run_status_created
		ON scrape_run (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS product (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES scrape_run(id) ON DELETE CASCADE,
		position INT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL DEFAULT 0,
		old_price NUMERIC(12,2),
		bulk_price NUMERIC(12,2),
		is_bulk BOOLEAN NOT NULL DEFAULT FALSE,
		discount TEXT,
		is_on_sale BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_run ON product (run_id, position)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		target_stream TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ,
		next_retry_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_status_retry
		ON outbox_event (status, next_retry_at)`,
}

// Migrate creates the tables this service needs.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
