package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteFileName is the database file created inside the cache directory.
const SQLiteFileName = "twig-support.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	pool       TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (pool, key)
)`

// SQLiteStore keeps values in a single SQLite database, which lets several
// worker processes share one cache file safely.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the cache database inside dir. The
// special dir ":memory:" opens a private in-memory database.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if dir != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
		}
		dsn = filepath.Join(dir, SQLiteFileName)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers within the process.
	db.SetMaxOpenConns(1)

	if dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get reads a value.
func (s *SQLiteStore) Get(ctx context.Context, pool, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM cache_entries WHERE pool = ? AND key = ?", pool, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache entry %s/%s: %w", pool, key, err)
	}
	return value, true, nil
}

// Set writes a value. The last writer wins.
func (s *SQLiteStore) Set(ctx context.Context, pool, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (pool, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (pool, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		pool, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store cache entry %s/%s: %w", pool, key, err)
	}
	return nil
}

// Delete removes a value.
func (s *SQLiteStore) Delete(ctx context.Context, pool, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE pool = ? AND key = ?", pool, key,
	)
	if err != nil {
		return fmt.Errorf("delete cache entry %s/%s: %w", pool, key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
