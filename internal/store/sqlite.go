package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLiteStore implements Store on a single-table SQLite database. A store
// mutex serializes read-modify-write cycles; plain reads go straight to the
// database.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetRaw returns the stored bytes for key, or ErrNotFound.
func (s *SQLiteStore) GetRaw(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM entries WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

const upsert = `INSERT INTO entries (key, value, updated_at) VALUES (?, ?, ?)
 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// SetRaw stores value whole under key, replacing any previous value.
func (s *SQLiteStore) SetRaw(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, upsert, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// SetRawBatch writes all entries in one transaction, so a failure leaves
// every key at its previous value.
func (s *SQLiteStore) SetRawBatch(ctx context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch write: %w", err)
	}
	now := time.Now().Unix()
	for key, value := range entries {
		if _, err := tx.ExecContext(ctx, upsert, key, value, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch write: %w", err)
	}
	return nil
}

// UpdateRaw runs fn on the current value of key and writes the result back,
// holding the store mutex for the whole cycle.
func (s *SQLiteStore) UpdateRaw(ctx context.Context, key string, fn func(value []byte, found bool) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetRaw(ctx, key)
	found := true
	if errors.Is(err, ErrNotFound) {
		found = false
	} else if err != nil {
		return err
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}
	return s.SetRaw(ctx, key, next)
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
