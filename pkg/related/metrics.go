package related

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ViewsTotal counts related-book views by where they were served from.
	ViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "related_views_total",
			Help: "Total number of related-book views by source",
		},
		[]string{"source"}, // "catalog", "cache", "not_found", "error"
	)

	// ViewDuration tracks how long a served view took.
	ViewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "related_view_duration_seconds",
			Help:    "Related-book view duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)
