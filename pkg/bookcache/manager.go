package bookcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/granth-library/pkg/catalog"
	"github.com/Sternrassler/granth-library/pkg/storage"
	"github.com/rs/zerolog"
)

// Manager reads and writes the book snapshot. It is safe for concurrent
// use; concurrent writers follow last-write-wins.
type Manager struct {
	store  storage.Store
	config Config
	key    string
	logger zerolog.Logger
	now    func() time.Time
}

// NewManager creates a cache manager over store.
func NewManager(store storage.Store, cfg Config, logger zerolog.Logger) *Manager {
	if store == nil {
		panic("store cannot be nil")
	}
	cfg = cfg.withDefaults()
	return &Manager{
		store:  store,
		config: cfg,
		key:    cfg.Key.String(),
		logger: logger.With().Str("cache_key", cfg.Key.String()).Logger(),
		now:    time.Now,
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Available tests the store with a throwaway write and delete.
// A quota rejection still proves the store is reachable.
func (m *Manager) Available(ctx context.Context) bool {
	err := m.store.Set(ctx, checkKey, checkKey)
	if errors.Is(err, storage.ErrQuotaExceeded) {
		return true
	}
	if err != nil {
		m.logger.Debug().Err(err).Msg("Cache store unavailable")
		return false
	}
	if err := m.store.Remove(ctx, checkKey); err != nil {
		m.logger.Debug().Err(err).Msg("Cache store check cleanup failed")
		return false
	}
	return true
}

// Load returns the stored snapshot, or StatusEmpty when the store is
// unavailable, holds nothing, holds a malformed value, or holds an
// expired snapshot. Malformed and expired values are removed.
func (m *Manager) Load(ctx context.Context) Result {
	res := m.read(ctx).collapse()
	if res.OK() {
		CacheHits.Inc()
		m.logger.Debug().
			Str("current_book", res.Snapshot.LastViewed.CurrentBookID).
			Int("books", len(res.Snapshot.Entries)).
			Msg("Cache hit")
	} else {
		CacheMisses.WithLabelValues(missReason(res.Reason)).Inc()
		m.logger.Debug().Err(res.Reason).Msg("Cache miss")
	}
	return res
}

// LoadFor is Load scoped to currentBookID. A valid snapshot taken for a
// different book is reported as empty and left in place.
func (m *Manager) LoadFor(ctx context.Context, currentBookID string) Result {
	res := m.read(ctx).collapse()
	if res.OK() && res.Snapshot.LastViewed.CurrentBookID != currentBookID {
		res = empty(fmt.Errorf("%w: want %q, have %q",
			ErrOtherBook, currentBookID, res.Snapshot.LastViewed.CurrentBookID))
	}

	if res.OK() {
		CacheHits.Inc()
	} else {
		CacheMisses.WithLabelValues(missReason(res.Reason)).Inc()
		m.logger.Debug().Err(res.Reason).Str("current_book", currentBookID).Msg("Cache miss")
	}
	return res
}

// Snapshot is Load in comma-ok form.
func (m *Manager) Snapshot(ctx context.Context) (*Snapshot, bool) {
	res := m.Load(ctx)
	return res.Snapshot, res.OK()
}

// read performs the load without collapsing failures.
func (m *Manager) read(ctx context.Context) Result {
	if !m.Available(ctx) {
		return empty(storage.ErrUnavailable)
	}

	raw, err := m.store.Get(ctx, m.key)
	if errors.Is(err, storage.ErrNotFound) {
		return empty(storage.ErrNotFound)
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		m.logger.Warn().Err(err).Msg("Cache read failed")
		m.Clear(ctx)
		return failed(err)
	}

	snap, err := decodeSnapshot(raw, m.config)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Discarding malformed cache snapshot")
		m.Clear(ctx)
		return failed(err)
	}

	if now := m.now(); snap.IsExpired(now, m.config.TTL) {
		m.logger.Debug().
			Dur("age", snap.Age(now)).
			Dur("ttl", m.config.TTL).
			Msg("Discarding expired cache snapshot")
		m.Clear(ctx)
		return empty(fmt.Errorf("%w: captured %s", ErrExpired, snap.CapturedAt.Format(time.RFC3339)))
	}

	return ok(snap)
}

// Update replaces the snapshot with one built from the first
// MaxViewportBooks viewport ids and the first MaxBooks books, stamped now.
// A quota rejection clears the stored snapshot; other failures are logged.
// The result is OK with the written snapshot, or empty with the cause.
func (m *Manager) Update(ctx context.Context, currentBookID string, viewportIDs []string, books []catalog.Book) Result {
	if !m.Available(ctx) {
		return empty(storage.ErrUnavailable)
	}
	return m.write(ctx, currentBookID, viewportIDs, books).collapse()
}

func (m *Manager) write(ctx context.Context, currentBookID string, viewportIDs []string, books []catalog.Book) Result {
	snap := newSnapshot(currentBookID, viewportIDs, books, m.config, m.now())

	data, err := json.Marshal(snap)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		m.logger.Warn().Err(err).Msg("Cache snapshot encoding failed")
		return failed(err)
	}

	if err := m.store.Set(ctx, m.key, string(data)); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		if errors.Is(err, storage.ErrQuotaExceeded) {
			QuotaEvictions.Inc()
			m.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Cache quota exceeded, clearing snapshot")
			m.Clear(ctx)
			return failed(err)
		}
		m.logger.Warn().Err(err).Msg("Cache write failed")
		return failed(err)
	}

	CacheWrites.Inc()
	SnapshotSize.Set(float64(len(data)))
	m.logger.Debug().
		Str("current_book", currentBookID).
		Int("books", len(snap.Entries)).
		Int("viewport", len(snap.LastViewed.ViewportBookIDs)).
		Int("bytes", len(data)).
		Msg("Cache snapshot written")

	return ok(snap)
}

// CachedBooks returns the cached summaries for ids in request order.
// Ids not in the snapshot are dropped; no snapshot yields nil.
func (m *Manager) CachedBooks(ctx context.Context, ids []string) []Summary {
	res := m.Load(ctx)
	if !res.OK() {
		return nil
	}
	return res.Snapshot.Lookup(ids)
}

// Clear removes the stored snapshot. It is idempotent and never fails;
// it does not test the store first, so a full store can still be emptied.
func (m *Manager) Clear(ctx context.Context) {
	if err := m.store.Remove(ctx, m.key); err != nil {
		CacheErrors.WithLabelValues("remove").Inc()
		m.logger.Debug().Err(err).Msg("Cache clear failed")
	}
}

// IsValid reports whether a well-formed, unexpired snapshot is stored.
func (m *Manager) IsValid(ctx context.Context) bool {
	return m.read(ctx).OK()
}

// missReason maps an empty-result reason to a metric label.
func missReason(err error) string {
	switch {
	case errors.Is(err, storage.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedSnapshot):
		return "malformed"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrOtherBook):
		return "other_book"
	default:
		return "error"
	}
}
