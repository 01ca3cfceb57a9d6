// Package db provides PostgreSQL persistence for artifacts, guidance fragments and run history.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS course_artifacts (
	kind       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	subject    TEXT NOT NULL,
	lesson_id  TEXT NOT NULL DEFAULT '',
	content    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (kind, user_id, subject, lesson_id)
);

CREATE TABLE IF NOT EXISTS stage_guidance (
	id         BIGSERIAL PRIMARY KEY,
	stage      TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	position   INT NOT NULL DEFAULT 0,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS stage_guidance_lookup ON stage_guidance (stage, subject, position);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL,
	subject       TEXT NOT NULL,
	stage         TEXT NOT NULL,
	status        TEXT NOT NULL,
	percent       DOUBLE PRECISION NOT NULL DEFAULT 0,
	step          TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	failed_stage  TEXT NOT NULL DEFAULT '',
	retry_count   INT NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS pipeline_runs_user ON pipeline_runs (user_id, started_at DESC);
`

// EnsureSchema creates the tables used by this package if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
