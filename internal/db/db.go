// Package db implements the durable configuration/cache store of the
// pipeline: a single-table key-value store on Postgres with optional
// per-entry TTL, plus typed repositories for the domain records that live in
// it (active-ZIP set, per-ZIP format lists, geocode cache, weather cache,
// status records, artifact metadata).
//
// Every write is a full-value overwrite (last-writer-wins); there are no
// partial or field-level mutations, so concurrent writers for different keys
// never conflict and concurrent writers for the same key produce a
// well-defined final value.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"weatherscape/internal/config"
)

// DBTX abstracts the pgx query interface so repositories work with both
// *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool creates a pgx connection pool from the database configuration and
// verifies connectivity with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Reveal())
	if err != nil {
		return nil, fmt.Errorf("db: invalid DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("db: failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the KV store schema. The store is a single table, so an
// idempotent CREATE IF NOT EXISTS at startup stands in for a migration tool.
func Migrate(ctx context.Context, db DBTX) error {
	const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS kv_entries_expires_at_idx
    ON kv_entries (expires_at) WHERE expires_at IS NOT NULL;`

	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("db: failed to apply kv schema: %w", err)
	}
	return nil
}
