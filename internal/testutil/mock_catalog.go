// Package testutil provides testing utilities for the library services.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/granth-library/pkg/catalog"
)

// MockCatalog is an in-memory stand-in for the backend's REST surface.
// It understands the subset of PostgREST filters the catalog source sends.
type MockCatalog struct {
	server *httptest.Server
	mu     sync.RWMutex

	books      []catalog.Book
	languages  []catalog.Language
	categories []catalog.Category
	reports    []map[string]any

	failures []int // status codes returned before serving normally
	headers  http.Header

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastQuery         string
}

// NewMockCatalog creates a mock serving books.
func NewMockCatalog(books ...catalog.Book) *MockCatalog {
	mock := &MockCatalog{books: books}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/books", mock.handleBooks)
	mux.HandleFunc("/rest/v1/languages", func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()
		writeJSON(w, http.StatusOK, mock.languages)
	})
	mux.HandleFunc("/rest/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()
		writeJSON(w, http.StatusOK, mock.categories)
	})

	mux.HandleFunc("POST /rest/v1/reports", mock.handleReports)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = r.URL.RawQuery
		for k, v := range mock.headers {
			w.Header()[k] = v
		}
		var status int
		if len(mock.failures) > 0 {
			status = mock.failures[0]
			mock.failures = mock.failures[1:]
		}
		mock.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears tracking counters and pending failures.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = ""
	m.failures = nil
	m.headers = nil
}

// FailNext makes the next len(statuses) requests answer with those codes.
func (m *MockCatalog) FailNext(statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, statuses...)
}

// SetResponseHeader adds a header to every response.
func (m *MockCatalog) SetResponseHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.headers == nil {
		m.headers = http.Header{}
	}
	m.headers.Set(key, value)
}

// SetBooks replaces the served books.
func (m *MockCatalog) SetBooks(books ...catalog.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = books
}

// SetLanguages replaces the served languages.
func (m *MockCatalog) SetLanguages(langs ...catalog.Language) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages = langs
}

// SetCategories replaces the served categories.
func (m *MockCatalog) SetCategories(cats ...catalog.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = cats
}

// Reports returns the inserted report rows, oldest first.
func (m *MockCatalog) Reports() []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]any, len(m.reports))
	copy(out, m.reports)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

func (m *MockCatalog) handleBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.RLock()
	var matched []catalog.Book
	for _, b := range m.books {
		if matchFilter(q.Get("id"), b.ID) &&
			matchFilter(q.Get("category"), b.Category) &&
			matchFilter(q.Get("language"), b.Language) &&
			matchSearch(q.Get("or"), b) {
			matched = append(matched, b)
		}
	}
	m.mu.RUnlock()

	if q.Get("order") == "title" {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	}

	total := len(matched)
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit < len(matched) {
		matched = matched[:limit]
	}

	if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
		if len(matched) == 0 {
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", total))
		} else {
			w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%d", offset, offset+len(matched)-1, total))
		}
	}
	if matched == nil {
		matched = []catalog.Book{}
	}
	writeJSON(w, http.StatusOK, matched)
}

// handleReports accepts a PostgREST bulk insert of report rows.
func (m *MockCatalog) handleReports(w http.ResponseWriter, r *http.Request) {
	var rows []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	for _, row := range rows {
		if row["report_type"] == nil || row["description"] == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "null value in column"})
			return
		}
	}

	m.mu.Lock()
	m.reports = append(m.reports, rows...)
	m.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
}

// matchFilter evaluates "eq.x" / "neq.x"; an empty filter matches.
func matchFilter(filter, value string) bool {
	switch {
	case filter == "":
		return true
	case strings.HasPrefix(filter, "eq."):
		return value == strings.TrimPrefix(filter, "eq.")
	case strings.HasPrefix(filter, "neq."):
		return value != strings.TrimPrefix(filter, "neq.")
	}
	return false
}

// matchSearch evaluates "(title.ilike.*q*,author.ilike.*q*)".
func matchSearch(filter string, b catalog.Book) bool {
	if filter == "" {
		return true
	}
	start := strings.Index(filter, ".ilike.*")
	if start < 0 {
		return false
	}
	rest := filter[start+len(".ilike.*"):]
	end := strings.IndexByte(rest, '*')
	if end < 0 {
		return false
	}
	term := strings.ToLower(rest[:end])
	return strings.Contains(strings.ToLower(b.Title), term) ||
		strings.Contains(strings.ToLower(b.Author), term)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewBook builds a catalog book with fixed timestamps.
func NewBook(id, title, category string) catalog.Book {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return catalog.Book{
		ID:               id,
		Title:            title,
		Category:         category,
		Language:         "Sanskrit",
		ShortDescription: title + " (short)",
		ImageURL:         "https://images.example.org/" + id + ".jpg",
		PDFDriveLink:     "https://drive.google.com/file/d/" + id + "-file/view?usp=sharing",
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
}
