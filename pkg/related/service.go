// Package related serves the "related books" strip shown beside a book.
//
// Fresh results come from the catalog and are written through to the
// book cache. When the catalog cannot be reached, the last snapshot taken
// for the same book is served instead.
package related

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/granth-library/pkg/bookcache"
	"github.com/Sternrassler/granth-library/pkg/catalog"
	"github.com/rs/zerolog"
)

// View is the related-books strip for one book.
type View struct {
	BookID    string              `json:"book_id"`
	Books     []bookcache.Summary `json:"books"`
	FromCache bool                `json:"from_cache"`
}

// Service assembles related-book views.
type Service struct {
	source catalog.Source
	cache  *bookcache.Manager
	limit  int
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a service. A limit <= 0 uses catalog.DefaultRelatedLimit.
func NewService(source catalog.Source, cache *bookcache.Manager, limit int, logger zerolog.Logger) *Service {
	if source == nil {
		panic("source cannot be nil")
	}
	if cache == nil {
		panic("cache cannot be nil")
	}
	if limit <= 0 {
		limit = catalog.DefaultRelatedLimit
	}
	return &Service{
		source: source,
		cache:  cache,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

// View returns the related books for bookID. viewportIDs are the ids the
// caller currently has on screen; when empty, the fresh related ids are
// recorded instead. catalog.ErrNotFound is returned as is.
func (s *Service) View(ctx context.Context, bookID string, viewportIDs []string) (*View, error) {
	start := s.now()

	books, err := s.fetch(ctx, bookID)
	if err == nil {
		if len(viewportIDs) == 0 {
			viewportIDs = catalog.IDs(books)
		}
		s.cache.Update(ctx, bookID, viewportIDs, books)

		ViewsTotal.WithLabelValues("catalog").Inc()
		ViewDuration.WithLabelValues("catalog").Observe(s.now().Sub(start).Seconds())
		return &View{BookID: bookID, Books: project(books, s.now()), FromCache: false}, nil
	}

	if errors.Is(err, catalog.ErrNotFound) {
		ViewsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	res := s.cache.LoadFor(ctx, bookID)
	if !res.OK() {
		ViewsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("book_id", bookID).Msg("Related books unavailable")
		return nil, err
	}

	s.logger.Warn().Err(err).
		Str("book_id", bookID).
		Int("books", len(res.Snapshot.Entries)).
		Msg("Catalog failed, serving related books from cache")

	ViewsTotal.WithLabelValues("cache").Inc()
	ViewDuration.WithLabelValues("cache").Observe(s.now().Sub(start).Seconds())
	return &View{BookID: bookID, Books: cachedOrder(res.Snapshot), FromCache: true}, nil
}

func (s *Service) fetch(ctx context.Context, bookID string) ([]catalog.Book, error) {
	book, err := s.source.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", bookID, err)
	}
	books, err := s.source.RelatedBooks(ctx, book, s.limit)
	if err != nil {
		return nil, fmt.Errorf("related books for %s: %w", bookID, err)
	}
	return books, nil
}

func project(books []catalog.Book, now time.Time) []bookcache.Summary {
	out := make([]bookcache.Summary, 0, len(books))
	for _, b := range books {
		out = append(out, bookcache.Project(b, now))
	}
	return out
}

// cachedOrder lists the snapshot's summaries viewport ids first, then the
// rest by title.
func cachedOrder(snap *bookcache.Snapshot) []bookcache.Summary {
	out := snap.Lookup(snap.LastViewed.ViewportBookIDs)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s.ID] = true
	}

	var rest []bookcache.Summary
	for id, s := range snap.Entries {
		if !seen[id] {
			rest = append(rest, s)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Title != rest[j].Title {
			return rest[i].Title < rest[j].Title
		}
		return rest[i].ID < rest[j].ID
	})

	return append(out, rest...)
}
