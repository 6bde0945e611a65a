package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/granth-library/pkg/bookcache"
	"github.com/Sternrassler/granth-library/pkg/catalog"
	"github.com/Sternrassler/granth-library/pkg/metrics"
	"github.com/Sternrassler/granth-library/pkg/pdfview"
	"github.com/Sternrassler/granth-library/pkg/ratelimit"
	"github.com/Sternrassler/granth-library/pkg/recent"
	"github.com/Sternrassler/granth-library/pkg/related"
	"github.com/rs/zerolog"
)

const (
	requestTimeout = 30 * time.Second
	maxReportBytes = 16 << 10
)

type server struct {
	cache   *bookcache.Manager
	source  catalog.Source
	related *related.Service
	recent  *recent.List
	limiter *ratelimit.Tracker
	logger  zerolog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.HandleFunc("GET /status", s.statusHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /books", s.booksHandler)
	mux.HandleFunc("GET /languages", s.languagesHandler)
	mux.HandleFunc("GET /categories", s.categoriesHandler)
	mux.HandleFunc("GET /books/{id}/related", s.relatedHandler)
	mux.HandleFunc("GET /books/{id}/viewer", s.viewerHandler)
	mux.HandleFunc("POST /reports", s.reportHandler)
	mux.HandleFunc("GET /recent", s.recentHandler)
	mux.HandleFunc("POST /recent/{id}", s.recordRecentHandler)
	mux.HandleFunc("DELETE /recent", s.clearRecentHandler)
	mux.HandleFunc("DELETE /cache", s.clearCacheHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !s.cache.Available(r.Context()) {
		http.Error(w, "cache store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type statusResponse struct {
	CacheAvailable bool              `json:"cache_available"`
	CacheValid     bool              `json:"cache_valid"`
	RateLimit      *ratelimit.Health `json:"rate_limit,omitempty"`
}

// statusHandler reports the cache store and the catalog rate limit gate.
// It always answers 200; the fields carry the detail.
func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		CacheAvailable: s.cache.Available(r.Context()),
		CacheValid:     s.cache.IsValid(r.Context()),
	}
	if s.limiter != nil {
		h, err := s.limiter.Health(r.Context())
		if err != nil {
			s.logger.Debug().Err(err).Msg("Rate limit state unavailable")
		} else {
			resp.RateLimit = &h
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// booksHandler serves GET /books?language=&category=&q=.
func (s *server) booksHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	q := r.URL.Query()
	books, err := s.source.ListAll(ctx, catalog.Filter{
		Language: strings.TrimSpace(q.Get("language")),
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("q")),
	})
	if err != nil {
		s.catalogFailed(w, r, err)
		return
	}
	if books == nil {
		books = []catalog.Book{}
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *server) languagesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	langs, err := s.source.ListLanguages(ctx)
	if err != nil {
		s.catalogFailed(w, r, err)
		return
	}
	if langs == nil {
		langs = []catalog.Language{}
	}
	s.writeJSON(w, http.StatusOK, langs)
}

func (s *server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	cats, err := s.source.ListCategories(ctx)
	if err != nil {
		s.catalogFailed(w, r, err)
		return
	}
	if cats == nil {
		cats = []catalog.Category{}
	}
	s.writeJSON(w, http.StatusOK, cats)
}

// relatedHandler serves GET /books/{id}/related?viewport=a,b.
func (s *server) relatedHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	bookID := r.PathValue("id")
	view, err := s.related.View(ctx, bookID, splitIDs(r.URL.Query().Get("viewport")))
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.catalogFailed(w, r, err)
		return
	}
	if view.Books == nil {
		view.Books = []bookcache.Summary{}
	}
	s.writeJSON(w, http.StatusOK, view)
}

type viewerResponse struct {
	BookID  string           `json:"book_id"`
	PDFURL  string           `json:"pdf_url"`
	Sources []pdfview.Source `json:"sources"`
	State   pdfview.State    `json:"state"`
}

// viewerHandler serves the PDF fallback chain for a book together with
// the native renderer's toolbar state. The client sends back its page,
// page count and zoom percent, plus an optional action to apply.
func (s *server) viewerHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	viewer, err := viewerFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bookID := r.PathValue("id")
	book, err := s.source.GetBook(ctx, bookID)
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.catalogFailed(w, r, err)
		return
	}

	chain := pdfview.Plan(book.PDFDriveLink)
	if len(chain) == 0 {
		http.Error(w, "book has no pdf", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, viewerResponse{
		BookID:  book.ID,
		PDFURL:  book.PDFDriveLink,
		Sources: chain,
		State:   viewer.State(),
	})
}

// viewerFromQuery rebuilds the renderer from ?page=&pages=&zoom=&action=.
func viewerFromQuery(r *http.Request) (*pdfview.Viewer, error) {
	q := r.URL.Query()
	pages, err := intParam(q.Get("pages"), 0)
	if err != nil {
		return nil, fmt.Errorf("invalid pages: %w", err)
	}
	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		return nil, fmt.Errorf("invalid page: %w", err)
	}
	zoom, err := intParam(q.Get("zoom"), 100)
	if err != nil {
		return nil, fmt.Errorf("invalid zoom: %w", err)
	}

	v := pdfview.NewViewer(pages)
	v.GoTo(page)
	v.SetZoom(float64(zoom) / 100)
	if err := v.Apply(pdfview.Action(q.Get("action"))); err != nil {
		return nil, err
	}
	return v, nil
}

func intParam(raw string, def int) (int, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// reportHandler accepts an issue report as JSON.
func (s *server) reportHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var report catalog.Report
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBytes)).Decode(&report); err != nil {
		http.Error(w, "invalid report body", http.StatusBadRequest)
		return
	}
	err := s.source.SubmitReport(ctx, report)
	if errors.Is(err, catalog.ErrInvalidReport) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.catalogFailed(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "submitted"})
}

type recentResponse struct {
	BookIDs []string            `json:"book_ids"`
	Books   []bookcache.Summary `json:"books"`
}

// recentHandler lists recently opened books, newest first, with the
// cached summaries of those the snapshot still holds.
func (s *server) recentHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.recent.IDs(r.Context())
	if err != nil {
		s.recentFailed(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.recentView(r.Context(), ids))
}

func (s *server) recordRecentHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.recent.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		s.recentFailed(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.recentView(r.Context(), ids))
}

func (s *server) clearRecentHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.recent.Clear(r.Context()); err != nil {
		s.recentFailed(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) recentView(ctx context.Context, ids []string) recentResponse {
	resp := recentResponse{BookIDs: ids, Books: s.cache.CachedBooks(ctx, ids)}
	if resp.BookIDs == nil {
		resp.BookIDs = []string{}
	}
	if resp.Books == nil {
		resp.Books = []bookcache.Summary{}
	}
	return resp
}

func (s *server) recentFailed(w http.ResponseWriter, err error) {
	s.logger.Warn().Err(err).Msg("Recent books list failed")
	http.Error(w, "recent books unavailable", http.StatusServiceUnavailable)
}

// catalogFailed logs err and answers 502 without upstream detail.
func (s *server) catalogFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Catalog request failed")
	http.Error(w, "catalog unavailable", http.StatusBadGateway)
}

func (s *server) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	s.cache.Clear(r.Context())
	s.logger.Info().Msg("Cache cleared on request")
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}

// splitIDs parses a comma-separated id list, dropping blanks.
func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
