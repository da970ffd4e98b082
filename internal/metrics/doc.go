// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are package-level variables registered with the default
registry through promauto, and are exposed at /metrics in Prometheus text
format:

	curl http://localhost:8080/metrics

# Available Metrics

API Metrics:
  - tastemap_api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - tastemap_api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - tastemap_api_active_requests: In-flight requests (gauge)
  - tastemap_api_rate_limit_hits_total: Rate limit rejections (counter)

Store Metrics:
  - tastemap_store_query_duration_seconds: Query time (histogram)
    Labels: driver (duckdb, postgres, memory), operation
  - tastemap_store_query_errors_total: Failed queries (counter)

Recommendation Metrics:
  - tastemap_recommend_duration_seconds: End-to-end latency (histogram)
    Labels: strategy, cache (hit, miss)
  - tastemap_recommend_chosen_k: Adaptive k outcome (histogram)
  - tastemap_recommend_fallbacks_total: k=1 fallbacks (counter)
  - tastemap_recommend_candidates: Ranked candidates per request (histogram)
  - tastemap_candidate_fetch_errors_total: Failed retrievals (counter)
    Labels: k
  - tastemap_rating_operations_total: Rate/unrate/rebuild outcomes (counter)
  - tastemap_embedding_maintenance_failures_total: Soft failures (counter)
    Labels: op

Cache Metrics:
  - tastemap_cache_requests_total: Lookups (counter)
    Labels: backend, result (hit, miss, expired, mismatch, corrupt)
  - tastemap_cache_writes_total: Writes (counter)
    Labels: backend, result (ok, error, oversize)
  - tastemap_cache_evictions_total: Evictions (counter)
    Labels: backend, reason
  - tastemap_cache_entries: Entries held by in-process backends (gauge)

Circuit Breaker Metrics:
  - tastemap_circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - tastemap_circuit_breaker_requests_total: Labels name, result
  - tastemap_circuit_breaker_consecutive_failures (gauge)
  - tastemap_circuit_breaker_state_transitions_total: Labels name, from_state, to_state
  - tastemap_retrieval_rate_limited_total (counter)

# Thread Safety

All collectors are safe for concurrent use.
*/
package metrics
