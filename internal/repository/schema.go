package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

const receiptsTable = "receipts"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS receipts (
		id          TEXT PRIMARY KEY,
		vendor      TEXT NOT NULL,
		date        DATE,
		amount      NUMERIC(12,2) NOT NULL,
		currency    TEXT,
		category    TEXT,
		gstin       TEXT,
		tax_amount  NUMERIC(12,2),
		status      TEXT NOT NULL,
		filename    TEXT,
		mime_type   TEXT,
		extracted   JSONB,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS receipts_created_at_idx ON receipts (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS receipts_gstin_idx ON receipts (gstin)`,
	`CREATE INDEX IF NOT EXISTS receipts_status_idx ON receipts (status)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS receipts (
		id          TEXT PRIMARY KEY,
		vendor      TEXT NOT NULL,
		date        DATE,
		amount      REAL NOT NULL,
		currency    TEXT,
		category    TEXT,
		gstin       TEXT,
		tax_amount  REAL,
		status      TEXT NOT NULL,
		filename    TEXT,
		mime_type   TEXT,
		extracted   TEXT,
		created_at  TIMESTAMP NOT NULL,
		updated_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS receipts_created_at_idx ON receipts (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS receipts_gstin_idx ON receipts (gstin)`,
	`CREATE INDEX IF NOT EXISTS receipts_status_idx ON receipts (status)`,
}

// Migrate creates the receipts table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.Dialect() == dialect.Postgres {
		stmts = postgresSchema
	}
	s.logger.Info("applying schema", "dialect", s.Dialect(), "statements", len(stmts))
	return s.withTx(ctx, func(tx dialect.Tx) error {
		for _, stmt := range stmts {
			if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
