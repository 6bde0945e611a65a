package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore keeps values in a single table of a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	quota int
}

// OpenSQLite opens (or creates) the database at path and prepares the schema.
func OpenSQLite(ctx context.Context, path string, quotaBytes int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	// single writer; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	s := NewSQLiteStore(db, quotaBytes)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an already opened database.
func NewSQLiteStore(db *sql.DB, quotaBytes int) *SQLiteStore {
	return &SQLiteStore{db: db, quota: quotaBytes}
}

// Init creates the kv table if needed.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", classifySQLiteError("get", err)
	}
	return value, nil
}

// Set implements Store. The quota check and the upsert share a transaction.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLiteError("begin", err)
	}
	defer tx.Rollback()

	if s.quota > 0 {
		var used int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0) FROM kv WHERE key <> ?`,
			key,
		).Scan(&used)
		if err != nil {
			return classifySQLiteError("usage", err)
		}
		need := used + int64(len(key)+len(value))
		if need > int64(s.quota) {
			return fmt.Errorf("%w: %d bytes over %d byte limit", ErrQuotaExceeded, need, s.quota)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return classifySQLiteError("set", err)
	}

	if err := tx.Commit(); err != nil {
		return classifySQLiteError("commit", err)
	}
	return nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return classifySQLiteError("remove", err)
	}
	return nil
}

// classifySQLiteError treats a full database as a quota failure and
// everything else as the store being unavailable.
func classifySQLiteError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_FULL {
		return fmt.Errorf("%w: sqlite %s: %v", ErrQuotaExceeded, op, err)
	}
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: sqlite %s: %v", ErrQuotaExceeded, op, err)
	}
	return fmt.Errorf("%w: sqlite %s: %v", ErrUnavailable, op, err)
}
