// Package metrics holds the Prometheus collectors exported on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dishcover_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_api_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	// Caches
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "place", "search", "preferences"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Place search provider
	PlacesRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_places_requests_total",
			Help: "Total number of place provider calls",
		},
		[]string{"operation", "result"}, // operation: "search", "details"
	)

	PlacesRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dishcover_places_request_duration_seconds",
			Help:    "Duration of place provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SearchCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dishcover_search_coalesced_total",
			Help: "Searches served by an in-flight or lingering identical call",
		},
	)

	// Recommendation generator
	GeneratorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_generator_requests_total",
			Help: "Total number of generator calls",
		},
		[]string{"backend", "result"},
	)

	GeneratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dishcover_generator_duration_seconds",
			Help:    "Duration of generator calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"backend"},
	)

	// Resolver
	ResolverOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_resolver_outcomes_total",
			Help: "Resolution outcome per suggestion",
		},
		[]string{"outcome"}, // "cache", "search", "dropped"
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dishcover_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Background jobs
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dishcover_jobs_processed_total",
			Help: "Total number of background jobs processed",
		},
		[]string{"type", "result"}, // result: "completed", "failed"
	)
)
