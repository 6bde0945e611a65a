// Package pagination provides parallel batch fetching for paged catalog listings.
//
// The catalog REST surface reports the total row count in the Content-Range
// header of the first page. This package fetches that page, derives the
// page count, and spreads the remaining pages over a small worker pool.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher[catalog.Book](pages, pagination.DefaultConfig())
//	books, err := fetcher.FetchAll(ctx)
//
// The batch fetcher:
//   - Fetches the first page to determine total pages
//   - Spawns a worker pool (default 4 workers)
//   - Reassembles items in page order
//   - Returns the pages fetched so far together with the first worker error
package pagination
