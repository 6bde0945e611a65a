// Package storage provides string key-value stores used to persist the
// book cache snapshot.
//
// Three backends are available:
//
//   - MemoryStore: in-process map with a byte quota (tests, single instance)
//   - SQLiteStore: local file via modernc.org/sqlite (the closest analogue
//     to browser local storage)
//   - RedisStore: shared store with optional server-side expiry
//
// All backends translate their native failures into the sentinel errors
// below so callers can classify them with errors.Is.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the key holds no value.
	ErrNotFound = errors.New("storage: key not found")

	// ErrUnavailable indicates the store cannot be reached or is disabled.
	ErrUnavailable = errors.New("storage: unavailable")

	// ErrQuotaExceeded indicates a write was rejected for size.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// Store is a string-by-string key-value store.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// DefaultQuotaBytes mirrors the per-origin limit most browsers apply to
// local storage.
const DefaultQuotaBytes = 5 << 20
