// Package metrics holds the Prometheus collectors of the flights service.
// Collectors register with the default registry, served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP responses by route and status code
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})

	// RequestDuration tracks handler latency
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flights_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"route"})

	// InputSegments tracks the number of legs per request
	InputSegments = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flights_consolidate_input_segments",
		Help:    "Number of segments received per consolidation",
		Buckets: []float64{0, 1, 2, 5, 10, 50, 100, 1000, 10000},
	})

	// Merges counts contractions performed by the consolidator
	Merges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flights_consolidate_merges_total",
		Help: "Total segment contractions",
	})

	// Rejections counts requests rejected before consolidation, by reason
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flights_rejections_total",
		Help: "Requests rejected by reason",
	}, []string{"reason"}) // "not_found", "bad_request", "too_large", "method_not_allowed", "internal"

	// QueueDepth is the number of jobs waiting for the worker
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flights_worker_queue_depth",
		Help: "Jobs waiting for the single-writer worker",
	})

	// JobDuration tracks how long each job holds the worker
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flights_worker_job_duration_seconds",
		Help:    "Time a job holds the single-writer worker",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
)
