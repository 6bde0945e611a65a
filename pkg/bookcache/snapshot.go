package bookcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/granth-library/pkg/catalog"
)

var (
	// ErrMalformedSnapshot indicates the stored value is not a valid snapshot.
	ErrMalformedSnapshot = errors.New("malformed cache snapshot")

	// ErrExpired indicates the stored snapshot is older than the TTL.
	ErrExpired = errors.New("cache snapshot expired")

	// ErrOtherBook indicates the snapshot was captured for a different book.
	ErrOtherBook = errors.New("cache snapshot belongs to another book")
)

// LastViewed scopes a snapshot to the page that produced it.
type LastViewed struct {
	CurrentBookID   string   `json:"currentBook"`
	ViewportBookIDs []string `json:"viewportBooks"`
}

// Snapshot is the single persisted cache value.
type Snapshot struct {
	LastViewed LastViewed         `json:"lastViewedBooks"`
	CapturedAt time.Time          `json:"timestamp"`
	Entries    map[string]Summary `json:"books"`
}

// newSnapshot builds a snapshot from caller-ordered inputs, keeping the
// first maxViewport ids and the first maxBooks books.
func newSnapshot(currentBookID string, viewportIDs []string, books []catalog.Book, cfg Config, now time.Time) *Snapshot {
	if len(viewportIDs) > cfg.MaxViewportBooks {
		viewportIDs = viewportIDs[:cfg.MaxViewportBooks]
	}
	if len(books) > cfg.MaxBooks {
		books = books[:cfg.MaxBooks]
	}

	entries := make(map[string]Summary, len(books))
	for _, b := range books {
		if b.ID == "" {
			continue
		}
		// a repeated id keeps its last occurrence
		entries[b.ID] = Project(b, now)
	}

	viewport := make([]string, len(viewportIDs))
	copy(viewport, viewportIDs)

	return &Snapshot{
		LastViewed: LastViewed{
			CurrentBookID:   currentBookID,
			ViewportBookIDs: viewport,
		},
		CapturedAt: now.UTC(),
		Entries:    entries,
	}
}

// Age returns how long ago the snapshot was captured.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// IsExpired reports whether the snapshot is older than ttl.
// A snapshot exactly ttl old is still valid.
func (s *Snapshot) IsExpired(now time.Time, ttl time.Duration) bool {
	return s.Age(now) > ttl
}

// Lookup returns the summaries for ids in request order, dropping misses.
func (s *Snapshot) Lookup(ids []string) []Summary {
	var out []Summary
	for _, id := range ids {
		if sum, ok := s.Entries[id]; ok {
			out = append(out, sum)
		}
	}
	return out
}

// wireSnapshot detects missing top-level fields, which Snapshot cannot.
type wireSnapshot struct {
	LastViewed *LastViewed        `json:"lastViewedBooks"`
	CapturedAt *time.Time         `json:"timestamp"`
	Entries    map[string]Summary `json:"books"`
}

// decodeSnapshot parses and shape-checks a stored value.
func decodeSnapshot(raw string, cfg Config) (*Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	switch {
	case w.LastViewed == nil:
		return nil, fmt.Errorf("%w: missing lastViewedBooks", ErrMalformedSnapshot)
	case w.CapturedAt == nil || w.CapturedAt.IsZero():
		return nil, fmt.Errorf("%w: missing timestamp", ErrMalformedSnapshot)
	case w.Entries == nil:
		return nil, fmt.Errorf("%w: missing books", ErrMalformedSnapshot)
	case len(w.Entries) > cfg.MaxBooks:
		return nil, fmt.Errorf("%w: %d books over limit %d", ErrMalformedSnapshot, len(w.Entries), cfg.MaxBooks)
	case len(w.LastViewed.ViewportBookIDs) > cfg.MaxViewportBooks:
		return nil, fmt.Errorf("%w: %d viewport books over limit %d",
			ErrMalformedSnapshot, len(w.LastViewed.ViewportBookIDs), cfg.MaxViewportBooks)
	}

	for key, sum := range w.Entries {
		if sum.ID == "" {
			return nil, fmt.Errorf("%w: book %q has no id", ErrMalformedSnapshot, key)
		}
	}

	return &Snapshot{
		LastViewed: *w.LastViewed,
		CapturedAt: *w.CapturedAt,
		Entries:    w.Entries,
	}, nil
}
