package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS professionals (
			id                     TEXT PRIMARY KEY,
			name                   TEXT NOT NULL,
			email                  TEXT NOT NULL UNIQUE,
			password_hash          TEXT NOT NULL,
			phone                  TEXT,
			business_name          TEXT,
			activation_state       TEXT NOT NULL DEFAULT 'NO_PLAN_SELECTED',
			verified               BOOLEAN NOT NULL DEFAULT FALSE,
			external_customer_id   TEXT,
			pending_plan_id        TEXT,
			active_subscription_id TEXT,
			abandoned_plan_id      TEXT,
			last_failure_reason    TEXT,
			last_failure_detail    TEXT,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_professionals_email ON professionals(email);

		CREATE TABLE IF NOT EXISTS payment_instruments (
			id              TEXT PRIMARY KEY,
			professional_id TEXT NOT NULL REFERENCES professionals(id),
			card_ref        TEXT NOT NULL,
			brand           TEXT NOT NULL DEFAULT 'UNKNOWN',
			last4           TEXT NOT NULL DEFAULT '****',
			exp_month       INT,
			exp_year        INT,
			is_default      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payment_instruments_professional ON payment_instruments(professional_id);

		CREATE TABLE IF NOT EXISTS activation_intents (
			professional_id   TEXT PRIMARY KEY REFERENCES professionals(id),
			plan_variation_id TEXT NOT NULL,
			customer_id_hint  TEXT,
			location_hint     TEXT,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS admins (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS catalog_cache (
			key        TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
