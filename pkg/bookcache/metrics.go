package bookcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts reads that returned a valid snapshot.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcache_hits_total",
			Help: "Total number of book cache hits",
		},
	)

	// CacheMisses counts reads that returned nothing, by reason.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcache_misses_total",
			Help: "Total number of book cache misses",
		},
		[]string{"reason"}, // "unavailable", "not_found", "malformed", "expired", "other_book", "error"
	)

	// CacheErrors tracks store operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookcache_errors_total",
			Help: "Total number of book cache store errors",
		},
		[]string{"operation"}, // "get", "set", "remove", "encode"
	)

	// CacheWrites counts snapshots persisted.
	CacheWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcache_writes_total",
			Help: "Total number of book cache snapshots written",
		},
	)

	// QuotaEvictions counts snapshots cleared after a quota failure.
	QuotaEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookcache_quota_evictions_total",
			Help: "Total number of book cache clears caused by storage quota",
		},
	)

	// SnapshotSize tracks the encoded size of the last written snapshot.
	SnapshotSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookcache_snapshot_bytes",
			Help: "Encoded size of the last written book cache snapshot",
		},
	)
)
