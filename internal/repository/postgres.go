// Package repository implements the PostgreSQL persistence layer for the
// storefront: catalog, carts, orders, webhook events and API keys.
package repository

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ironankr/storefront/db"
)

// NewPool opens a pgx connection pool for databaseURL. Every connection
// registers the shopspring decimal codecs so NUMERIC weight columns scan
// into decimal.Decimal without lossy float conversions.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	return pool, nil
}

// RunMigrations applies the embedded schema. The DDL is idempotent
// (CREATE TABLE IF NOT EXISTS) so running it on every boot is safe.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// nullable maps an empty string to a NULL parameter, for optional UUID
// columns stored as empty strings in the domain layer.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// orEmpty is the scan-side inverse of nullable.
func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
