// Package duckdb implements the persistence ports on an embedded DuckDB
// database. All state transitions are single-statement conditional updates,
// so concurrent callers serialize per row inside the database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/heliogrid/heliogrid/internal/core/ports"
)

type Store struct {
	db *sql.DB
}

// Ensure Store implements the full persistence surface.
var _ ports.Store = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		provider_id TEXT,
		image       TEXT NOT NULL,
		command     TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL,
		started_at  TIMESTAMP,
		finished_at TIMESTAMP,
		cost        DOUBLE NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS providers (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT,
		status        TEXT NOT NULL,
		gpu_specs     TEXT NOT NULL DEFAULT '{}',
		registered_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id         TEXT PRIMARY KEY,
		job_id     TEXT NOT NULL,
		amount     DOUBLE NOT NULL,
		status     TEXT NOT NULL,
		simulated  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	);`,
}

// NewStore opens (or creates) the database at path and bootstraps the
// schema. Pass an empty path for an in-memory database.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb at %q: %w", path, err)
	}
	// DuckDB resolves concurrent write transactions optimistically and fails
	// the loser instead of queueing it. One pooled connection serializes
	// writers; the conditional UPDATEs stay the per-row arbitration point.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
