package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/granth-library/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RESTConfig holds the REST source configuration.
type RESTConfig struct {
	// BaseURL of the hosted backend (e.g. "https://xyz.supabase.co").
	BaseURL string

	// APIKey is sent as the apikey header and as a bearer token.
	APIKey string

	// PageSize bounds each page fetched by ListAll.
	PageSize int

	// Timeout for a single HTTP request.
	Timeout time.Duration

	Retry      RetryConfig
	Pagination pagination.Config
}

// DefaultRESTConfig returns a safe default configuration.
func DefaultRESTConfig(baseURL, apiKey string) RESTConfig {
	return RESTConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		PageSize:   50,
		Timeout:    10 * time.Second,
		Retry:      DefaultRetryConfig(),
		Pagination: pagination.DefaultConfig(),
	}
}

// RateLimiter gates requests on the backend's rate limit.
// *ratelimit.Tracker implements it.
type RateLimiter interface {
	ShouldAllowRequest(ctx context.Context) (bool, time.Duration, error)
	UpdateFromResponse(ctx context.Context, status int, headers http.Header) error
}

// RESTSource reads the catalog through the backend's REST surface.
type RESTSource struct {
	httpClient *http.Client
	config     RESTConfig
	limiter    RateLimiter
	logger     zerolog.Logger
}

// NewRESTSource creates a new REST catalog source.
func NewRESTSource(cfg RESTConfig) (*RESTSource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &RESTSource{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     log.With().Str("component", "catalog-rest").Logger(),
	}, nil
}

// SetRateLimiter gates every request on limiter. Nil disables gating.
func (s *RESTSource) SetRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (s *RESTSource) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// GetBook implements Source.
func (s *RESTSource) GetBook(ctx context.Context, id string) (*Book, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	q.Set("limit", "1")

	var books []Book
	if _, err := s.get(ctx, "books", q, false, &books); err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &books[0], nil
}

// ListBooks implements Source.
func (s *RESTSource) ListBooks(ctx context.Context, f Filter) ([]Book, error) {
	var books []Book
	if _, err := s.get(ctx, "books", bookQuery(f), false, &books); err != nil {
		return nil, err
	}
	return books, nil
}

// ListAll returns every book matching f, fetching pages in parallel.
// f.Limit and f.Offset are ignored.
func (s *RESTSource) ListAll(ctx context.Context, f Filter) ([]Book, error) {
	pages := pagination.PageFetcherFunc[Book](func(ctx context.Context, pageNum int) ([]Book, int, error) {
		return s.fetchPage(ctx, f, pageNum)
	})
	return pagination.NewBatchFetcher[Book](pages, s.config.Pagination).FetchAll(ctx)
}

// fetchPage fetches a 1-based page and derives the page count from the
// total row count.
func (s *RESTSource) fetchPage(ctx context.Context, f Filter, pageNum int) ([]Book, int, error) {
	f.Limit = s.config.PageSize
	f.Offset = (pageNum - 1) * s.config.PageSize

	var books []Book
	total, err := s.get(ctx, "books", bookQuery(f), true, &books)
	if err != nil {
		return nil, 0, err
	}

	totalPages := 1
	if total > 0 {
		totalPages = (total + s.config.PageSize - 1) / s.config.PageSize
	}
	return books, totalPages, nil
}

// RelatedBooks implements Source.
func (s *RESTSource) RelatedBooks(ctx context.Context, book *Book, limit int) ([]Book, error) {
	if book == nil {
		return nil, fmt.Errorf("book cannot be nil")
	}
	return s.ListBooks(ctx, relatedFilter(book, limit))
}

// ListLanguages implements Source.
func (s *RESTSource) ListLanguages(ctx context.Context) ([]Language, error) {
	q := url.Values{"select": {"*"}, "order": {"name"}}
	var langs []Language
	if _, err := s.get(ctx, "languages", q, false, &langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// ListCategories implements Source.
func (s *RESTSource) ListCategories(ctx context.Context) ([]Category, error) {
	q := url.Values{"select": {"*"}, "order": {"name"}}
	var cats []Category
	if _, err := s.get(ctx, "categories", q, false, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// bookQuery translates f into PostgREST query parameters.
func bookQuery(f Filter) url.Values {
	q := url.Values{}
	q.Set("select", "*")
	if f.Language != "" {
		q.Set("language", "eq."+f.Language)
	}
	if f.Category != "" {
		q.Set("category", "eq."+f.Category)
	}
	if f.ExcludeID != "" {
		q.Set("id", "neq."+f.ExcludeID)
	}
	if term := sanitizeSearch(f.Search); term != "" {
		q.Set("or", fmt.Sprintf("(title.ilike.*%s*,author.ilike.*%s*)", term, term))
	}
	q.Set("order", "title")
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// sanitizeSearch drops characters that carry meaning inside a PostgREST
// logic tree.
func sanitizeSearch(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '.', ':':
			return ' '
		}
		return r
	}, s))
}

// get performs a GET against a table and decodes the JSON array into out.
// With count set it asks for an exact total and returns it.
func (s *RESTSource) get(ctx context.Context, resource string, q url.Values, count bool, out any) (int, error) {
	endpoint := s.endpoint(resource) + "?" + q.Encode()

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
	}()

	var total int
	err := retryWithBackoff(ctx, s.config.Retry, s.logger, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if count {
			req.Header.Set("Prefer", "count=exact")
		}

		resp, err := s.do(ctx, resource, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", resource, err)
		}
		if count {
			total = parseContentRangeTotal(resp.Header.Get("Content-Range"))
		}
		return nil
	})
	return total, err
}

// SubmitReport implements Source. The insert is sent once; a failed
// attempt is not retried so a report is never stored twice.
func (s *RESTSource) SubmitReport(ctx context.Context, r Report) error {
	if err := r.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal([]map[string]any{r.insertRow()})
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues("reports").Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("reports"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.do(ctx, "reports", req)
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	resp.Body.Close()

	s.logger.Info().Str("report_type", string(r.Type)).Str("book_id", r.BookID).Msg("Report submitted")
	return nil
}

func (s *RESTSource) endpoint(resource string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/rest/v1/" + resource
}

// do runs one attempt of req: it consults the rate limit gate, sets the
// auth headers, records the response's rate limit headers and turns any
// status >= 400 into an *Error. On success the caller owns resp.Body.
func (s *RESTSource) do(ctx context.Context, resource string, req *http.Request) (*http.Response, error) {
	if s.limiter != nil {
		allowed, wait, err := s.limiter.ShouldAllowRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("rate limit gate: %w", err)
		}
		if !allowed {
			return nil, &Error{
				StatusCode: http.StatusTooManyRequests,
				ErrorClass: ErrorClassRateLimit,
				Message:    fmt.Sprintf("blocked locally for %s", wait.Round(time.Second)),
			}
		}
	}

	req.Header.Set("Accept", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("apikey", s.config.APIKey)
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		catalogRequestsTotal.WithLabelValues(resource, "network_error").Inc()
		s.logger.Warn().Err(err).Str("resource", resource).Msg("Catalog request failed")
		return nil, &Error{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}

	if s.limiter != nil {
		if err := s.limiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			s.logger.Debug().Err(err).Str("resource", resource).Msg("Ignoring rate limit headers")
		}
	}

	catalogRequestsTotal.WithLabelValues(resource, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		class := classifyStatus(resp.StatusCode)
		s.logger.Warn().
			Str("resource", resource).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")
		return nil, &Error{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    strings.TrimSpace(resp.Status + " " + string(body)),
		}
	}
	return resp, nil
}

// parseContentRangeTotal reads the total from "0-49/123" or "*/0".
// Unknown totals ("0-49/*") yield -1.
func parseContentRangeTotal(h string) int {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return -1
	}
	return n
}
