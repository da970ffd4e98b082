// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Store query performance (DuckDB, PostgreSQL, memory)
// - API endpoint latency and throughput
// - Recommendation pipeline (clustering, adaptive k, ranking)
// - Candidate cache efficiency
// - Candidate retrieval circuit breaker

var (
	// Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tastemap_store_query_duration_seconds",
			Help:    "Duration of store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_store_query_errors_total",
			Help: "Total number of store query errors",
		},
		[]string{"driver", "operation"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tastemap_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tastemap_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Recommendation Pipeline Metrics
	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tastemap_recommend_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy", "cache"}, // cache: "hit", "miss"
	)

	RecommendChosenK = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tastemap_recommend_chosen_k",
			Help:    "Cluster count selected by the adaptive search",
			Buckets: []float64{1, 2, 5, 7, 10, 15},
		},
	)

	RecommendFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tastemap_recommend_fallbacks_total",
			Help: "Total number of unconstrained k=1 fallbacks",
		},
	)

	RecommendCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tastemap_recommend_candidates",
			Help:    "Number of ranked candidates per recommendation",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
	)

	CandidateFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_candidate_fetch_errors_total",
			Help: "Total number of failed candidate retrievals",
		},
		[]string{"k"},
	)

	RatingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_rating_operations_total",
			Help: "Total number of rating operations",
		},
		[]string{"op", "result"}, // op: "rate", "unrate", "rebuild"
	)

	EmbeddingMaintenanceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_embedding_maintenance_failures_total",
			Help: "User embedding updates that failed after the rating write succeeded",
		},
		[]string{"op"},
	)

	// Candidate Cache Metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_cache_requests_total",
			Help: "Total number of candidate cache lookups",
		},
		[]string{"backend", "result"}, // result: "hit", "miss", "expired", "mismatch", "corrupt"
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_cache_writes_total",
			Help: "Total number of candidate cache writes",
		},
		[]string{"backend", "result"}, // result: "ok", "error", "oversize"
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_cache_evictions_total",
			Help: "Total number of evicted cache entries",
		},
		[]string{"backend", "reason"}, // reason: "ttl", "per_user_limit", "invalidate"
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tastemap_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"backend"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tastemap_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tastemap_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	RetrievalRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_retrieval_rate_limited_total",
			Help: "Candidate retrievals rejected by the rate limiter",
		},
		[]string{"name"},
	)

	// Background maintenance
	BackgroundTaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tastemap_background_task_runs_total",
			Help: "Periodic maintenance runs by task and result",
		},
		[]string{"task", "result"}, // result: "success", "failure"
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tastemap_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tastemap_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a store query metric
func RecordDBQuery(driver, operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(driver, operation).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records one completed recommendation pass.
func RecordRecommendation(strategy string, cacheHit bool, k int, fallback bool, candidates int, duration time.Duration) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	RecommendDuration.WithLabelValues(strategy, cache).Observe(duration.Seconds())
	RecommendChosenK.Observe(float64(k))
	RecommendCandidates.Observe(float64(candidates))
	if fallback {
		RecommendFallbacks.Inc()
	}
}

// RecordCandidateFetchError counts a failed retrieval for k.
func RecordCandidateFetchError(k int) {
	CandidateFetchErrors.WithLabelValues(strconv.Itoa(k)).Inc()
}

// RecordRatingOperation counts a rate, unrate or rebuild.
func RecordRatingOperation(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	RatingOperations.WithLabelValues(op, result).Inc()
}

// RecordMaintenanceFailure counts a failed user embedding update.
func RecordMaintenanceFailure(op string) {
	EmbeddingMaintenanceFailures.WithLabelValues(op).Inc()
}

// RecordBackgroundTask counts one periodic maintenance run.
func RecordBackgroundTask(task string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	BackgroundTaskRuns.WithLabelValues(task, result).Inc()
}

// RecordCacheLookup counts a cache lookup outcome.
func RecordCacheLookup(backend, result string) {
	CacheRequests.WithLabelValues(backend, result).Inc()
}

// RecordCacheWrite counts a cache write outcome.
func RecordCacheWrite(backend, result string) {
	CacheWrites.WithLabelValues(backend, result).Inc()
}

// RecordCacheEviction counts evicted entries.
func RecordCacheEviction(backend, reason string, n int) {
	if n > 0 {
		CacheEvictions.WithLabelValues(backend, reason).Add(float64(n))
	}
}

// SetAppInfo publishes build information.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
