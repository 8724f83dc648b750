package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database so budget
// counters survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the counter database at dbPath.
// An empty dbPath defaults to $TMPDIR/swipedine/prefetch.db.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "swipedine", "prefetch.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS counters (
		key   TEXT PRIMARY KEY,
		value REAL NOT NULL DEFAULT 0
	)`); err != nil {
		return nil, fmt.Errorf("failed to create counters table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the counter value for key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (float64, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, nil
}

// IncrBy atomically adds delta to the counter for key via upsert.
func (s *SQLiteStore) IncrBy(ctx context.Context, key string, delta float64) (float64, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = value + excluded.value
		RETURNING value`, key, delta).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
