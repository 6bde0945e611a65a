// Package metrics serves the Prometheus metrics of the library services.
// Metrics are defined next to the code that updates them (bookcache,
// catalog, related, ratelimit, recent) and registered on the default
// registerer via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Book Cache Metrics (pkg/bookcache):
//   - bookcache_hits_total (Counter): Reads that returned a valid snapshot
//   - bookcache_misses_total{reason} (Counter): Misses by reason
//     (unavailable, not_found, malformed, expired, other_book, error)
//   - bookcache_errors_total{operation} (Counter): Store errors (get, set, remove, encode)
//   - bookcache_writes_total (Counter): Snapshots written
//   - bookcache_quota_evictions_total (Counter): Snapshots cleared after a quota failure
//   - bookcache_snapshot_bytes (Gauge): Encoded size of the last written snapshot
//
// Catalog Metrics (pkg/catalog):
//   - catalog_requests_total{resource, status} (Counter): Requests by resource and HTTP status
//   - catalog_request_duration_seconds{resource} (Histogram): Request duration
//   - catalog_retries_total{error_class} (Counter): Retry attempts by error class
//   - catalog_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Related View Metrics (pkg/related):
//   - related_views_total{source} (Counter): Views by source (catalog, cache, not_found, error)
//   - related_view_duration_seconds{source} (Histogram): View duration
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_remaining (Gauge): Requests left in the backend's window
//   - catalog_rate_limit_blocks_total (Counter): Requests held back by Retry-After
//   - catalog_rate_limit_throttles_total (Counter): Requests delayed by a low budget
//
// Reading Activity Metrics (pkg/recent):
//   - recent_books_recorded_total (Counter): Book opens recorded
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(bookcache_hits_total[5m])) /
//   (sum(rate(bookcache_hits_total[5m])) + sum(rate(bookcache_misses_total[5m])))
//
//   # Share of views served from cache
//   sum(rate(related_views_total{source="cache"}[5m])) / sum(rate(related_views_total[5m]))
//
//   # Quota pressure
//   increase(bookcache_quota_evictions_total[1h]) > 0
//
//   # P95 catalog latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
