// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

// Package sqlite implements the store interfaces on a single SQLite
// database. Counters and content fields are mutated only through their
// dedicated operations; consistency for concurrent mutation of the same
// row is delegated to SQLite's transactional guarantees.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/postpilot-ai/postpilot/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and initialises
// the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
	id                     TEXT PRIMARY KEY,
	stage                  TEXT NOT NULL DEFAULT 'no_plan',
	active_plan_id         TEXT NOT NULL DEFAULT '',
	active_post_id         TEXT NOT NULL DEFAULT '',
	last_generated_content TEXT NOT NULL DEFAULT '',
	plan_post_count        INTEGER NOT NULL DEFAULT 0,
	oauth_pending          INTEGER NOT NULL DEFAULT 0,
	created_at             TEXT NOT NULL,
	updated_at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS plans (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	theme           TEXT NOT NULL DEFAULT '',
	post_count      INTEGER NOT NULL DEFAULT 0,
	posts_published INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_plans_session ON plans(session_id);

CREATE TABLE IF NOT EXISTS posts (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	plan_id       TEXT NOT NULL DEFAULT '',
	platform      TEXT NOT NULL DEFAULT '',
	topic         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'draft',
	scheduled_for TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_posts_session ON posts(session_id, created_at);

CREATE TABLE IF NOT EXISTS connected_accounts (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	platform     TEXT NOT NULL,
	account_id   TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_accounts_session ON connected_accounts(session_id);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
