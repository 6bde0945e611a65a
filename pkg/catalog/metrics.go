package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by resource and status",
	}, []string{"resource", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"resource"})

	catalogRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retries_total",
		Help: "Total number of catalog retry attempts by error class",
	}, []string{"error_class"})

	catalogRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_retry_exhausted_total",
		Help: "Total number of times catalog retries were exhausted by error class",
	}, []string{"error_class"})
)
