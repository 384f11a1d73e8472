// Package store provides a SQLite-backed query history for pdfrag. Every
// answered question is persisted with its answer, the sources it cited and
// whether the fallback answer was returned, so `pdfrag history` and the
// HTTP API can show what was asked across restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Source is the provenance of one chunk cited by an answer.
type Source struct {
	// Filename is the base name of the PDF.
	Filename string `json:"filename"`
	// Page is the 1-based page number, or "N/A".
	Page string `json:"page"`
}

// Entry is a single recorded question.
type Entry struct {
	// ID is the row identifier.
	ID int64
	// Question is the question as asked.
	Question string
	// Answer is the text returned to the user.
	Answer string
	// Sources lists the cited chunks, in distance order.
	Sources []Source
	// Fallback is true when no chunk was close enough to answer.
	Fallback bool
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// HistoryStore persists and retrieves asked questions. Implementations must
// be safe for concurrent use.
type HistoryStore interface {
	// Record persists a single entry. ID and CreatedAt are assigned by the store.
	Record(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// now is the clock used for CreatedAt.
	now func() time.Time
}

// DefaultDBPath returns the default path for the query history database.
// It resolves to ~/.pdfrag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pdfrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS queries (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      TEXT    NOT NULL DEFAULT '[]',  -- JSON array of {filename,page}
    fallback     INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_queries_created
    ON queries (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists a single entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	sources := e.Sources
	if sources == nil {
		sources = []Source{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: encode sources: %w", err)
	}

	const q = `INSERT INTO queries (question, answer, sources, fallback, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, e.Question, e.Answer, string(raw), e.Fallback, s.now().Unix()); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest first. A non-positive n
// returns nothing.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	const q = `
SELECT id, question, answer, sources, fallback, created_at
FROM   queries
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw string
		var ts int64
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &raw, &e.Fallback, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e.Sources); err != nil {
			return nil, fmt.Errorf("store: decode sources of entry %d: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
