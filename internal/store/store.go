// Package store persists phrases, user progress, badges, and session logs in
// PostgreSQL via pgx.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for all tables. Execute it via [Store.Migrate] or
// apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS tongue_twisters (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,
    difficulty  TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tongue_twisters_difficulty ON tongue_twisters(difficulty);

CREATE TABLE IF NOT EXISTS user_progress (
    user_id             TEXT PRIMARY KEY,
    practice_streak     INTEGER NOT NULL DEFAULT 0,
    total_practice_time INTEGER NOT NULL DEFAULT 0,
    total_sessions      INTEGER NOT NULL DEFAULT 0,
    clarity_score       INTEGER NOT NULL DEFAULT 0,
    best_clarity_score  INTEGER NOT NULL DEFAULT 0,
    frequency           JSONB NOT NULL DEFAULT '{"daily":{},"weekly":{},"monthly":{}}',
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS badges (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    icon_url       TEXT NOT NULL DEFAULT '',
    criteria_type  TEXT NOT NULL,
    criteria_value INTEGER NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_badges (
    user_id    TEXT NOT NULL,
    badge_id   TEXT NOT NULL REFERENCES badges(id),
    awarded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, badge_id)
);

CREATE TABLE IF NOT EXISTS practice_sessions (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    phrase_id        TEXT NOT NULL,
    clarity_score    INTEGER NOT NULL,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_practice_sessions_user ON practice_sessions(user_id, created_at DESC);
`

// DB is the database interface used by [Store] for single-statement queries.
// Both *pgxpool.Pool and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Beginner starts transactions. *pgxpool.Pool satisfies this interface.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store provides access to all persisted state.
type Store struct {
	db DB
	tx Beginner
}

// New creates a Store backed by a pgx pool. The caller is responsible for
// calling [Store.Migrate] before issuing queries.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, tx: pool}
}

// NewWithDB creates a Store on an arbitrary DB. Transactional operations
// (progress updates) are unavailable unless db also implements [Beginner].
// Intended for tests.
func NewWithDB(db DB) *Store {
	s := &Store{db: db}
	if b, ok := db.(Beginner); ok {
		s.tx = b
	}
	return s
}

// Connect opens a pgx pool for dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return pool, nil
}

// Migrate executes the [Schema] DDL, creating tables and indexes if they do
// not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
