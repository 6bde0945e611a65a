// Package recent keeps the reader's recently opened books.
//
// The list is a JSON array of book ids stored under "recentBooks" in the
// same storage.Store as the book cache snapshot. Opening a book moves it
// to the front; the list holds at most DefaultLimit ids.
package recent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Sternrassler/granth-library/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	// DefaultKey is the store key of the list.
	DefaultKey = "recentBooks"

	// DefaultLimit bounds the number of ids kept.
	DefaultLimit = 10
)

var booksRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "recent_books_recorded_total",
	Help: "Total number of book opens recorded in the recent list",
})

// List is the recently opened books list. Record is serialized within a
// process; concurrent writers in other processes follow last-write-wins.
type List struct {
	store  storage.Store
	limit  int
	logger zerolog.Logger

	mu sync.Mutex
}

// NewList creates a list over store. A limit <= 0 uses DefaultLimit.
func NewList(store storage.Store, limit int, logger zerolog.Logger) *List {
	if store == nil {
		panic("store cannot be nil")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &List{store: store, limit: limit, logger: logger}
}

// IDs returns the stored ids, newest first. A missing or unreadable list
// is empty; an unreadable one is removed.
func (l *List) IDs(ctx context.Context) ([]string, error) {
	raw, err := l.store.Get(ctx, DefaultKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recent books: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		l.logger.Warn().Err(err).Msg("Discarding unreadable recent books list")
		if err := l.store.Remove(ctx, DefaultKey); err != nil {
			l.logger.Debug().Err(err).Msg("Recent books cleanup failed")
		}
		return nil, nil
	}
	return ids, nil
}

// Record moves bookID to the front of the list, dropping its older
// occurrence and anything past the limit, and returns the new list.
func (l *List) Record(ctx context.Context, bookID string) ([]string, error) {
	if bookID == "" {
		return nil, errors.New("book id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev, err := l.IDs(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, l.limit)
	ids = append(ids, bookID)
	for _, id := range prev {
		if id != bookID && id != "" {
			ids = append(ids, id)
		}
	}
	ids = ids[:min(len(ids), l.limit)]

	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode recent books: %w", err)
	}
	if err := l.store.Set(ctx, DefaultKey, string(data)); err != nil {
		return nil, fmt.Errorf("write recent books: %w", err)
	}

	booksRecorded.Inc()
	l.logger.Debug().Str("book_id", bookID).Int("books", len(ids)).Msg("Recent book recorded")
	return slices.Clip(ids), nil
}

// Clear removes the list.
func (l *List) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Remove(ctx, DefaultKey); err != nil {
		return fmt.Errorf("clear recent books: %w", err)
	}
	return nil
}
