package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultConfig returns conservative defaults for a hosted backend.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single 1-based page and reports the total page count.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, pageNum int) (items []T, totalPages int, err error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, pageNum int) ([]T, int, error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, pageNum int) ([]T, int, error) {
	return f(ctx, pageNum)
}

// PageResult is the outcome of fetching a single page.
type PageResult[T any] struct {
	PageNumber int
	Items      []T
	Error      error
}

// BatchFetcher fetches every page of a listing in parallel.
type BatchFetcher[T any] struct {
	fetcher PageFetcher[T]
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher[T any](fetcher PageFetcher[T], config Config) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// FetchAll returns the items of all pages in page order.
// On a worker error the items of every page fetched before the first gap
// are returned along with the error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	firstCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	first, totalPages, err := bf.fetcher.FetchPage(firstCtx, 1)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	if totalPages <= 1 {
		bf.logger.Debug().
			Int("items", len(first)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return first, nil
	}

	bf.logger.Debug().Int("total_pages", totalPages).Msg("Starting parallel page fetch")

	pages := make(map[int][]T, totalPages)
	pages[1] = first

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	pageQueue := make(chan int, totalPages)
	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	results := make(chan PageResult[T], totalPages)

	workers := bf.config.MaxConcurrency
	if workers > totalPages-1 {
		workers = totalPages - 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, pageQueue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for result := range results {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
				// no point fetching pages past a gap
				stop()
			}
			continue
		}
		pages[result.PageNumber] = result.Items
	}

	items := make([]T, 0, len(first)*totalPages)
	fetched := 0
	for page := 1; page <= totalPages; page++ {
		p, ok := pages[page]
		if !ok {
			break
		}
		items = append(items, p...)
		fetched++
	}

	if firstErr != nil {
		bf.logger.Warn().
			Err(firstErr).
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return items, fmt.Errorf("worker error (partial data: %d/%d pages): %w", fetched, totalPages, firstErr)
	}

	bf.logger.Debug().
		Int("pages", totalPages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return items, nil
}

// worker processes pages from the queue.
func (bf *BatchFetcher[T]) worker(ctx context.Context, pageQueue <-chan int, results chan<- PageResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for pageNum := range pageQueue {
		if ctx.Err() != nil {
			return
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		items, _, err := bf.fetcher.FetchPage(pageCtx, pageNum)
		cancel()

		if err != nil {
			bf.logger.Debug().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")
		}

		// results is buffered for every page, so this never blocks
		results <- PageResult[T]{PageNumber: pageNum, Items: items, Error: err}
	}
}
