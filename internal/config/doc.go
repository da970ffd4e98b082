// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package config provides centralized configuration management for Tastemap.

Configuration is loaded with Koanf v2 in three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/tastemap/config.yaml or /etc/tastemap/config.yml
 3. Environment variables, mapped explicitly to config paths

Unmapped environment variables are ignored.

# Environment Variables

Storage:
  - STORE_DRIVER: duckdb, postgres or memory (default: duckdb)
  - RETRIEVAL_PROTECTED: wrap candidate retrieval in the circuit breaker (default: true)
  - DUCKDB_PATH: database file (default: /data/tastemap.duckdb)
  - DUCKDB_MAX_MEMORY, DUCKDB_THREADS, DUCKDB_PRESERVE_INSERTION_ORDER
  - POSTGRES_URL: required when STORE_DRIVER=postgres
  - POSTGRES_MAX_CONNS, POSTGRES_MIN_CONNS, POSTGRES_MAX_CONN_LIFETIME, POSTGRES_CREATE_INDEX

Recommendation cache:
  - CACHE_BACKEND: memory, badger, redis or none (default: memory)
  - CACHE_TTL (default: 1h), CACHE_MAX_ENTRIES_PER_USER (default: 3)
  - CACHE_MAX_ENTRY_BYTES (default: 4MiB), CACHE_JANITOR_INTERVAL (default: 5m)
  - CACHE_BADGER_PATH, CACHE_BADGER_GC_INTERVAL, CACHE_BADGER_DISCARD_RATIO
  - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_DIAL_TIMEOUT

Recommendation engine:
  - RECOMMEND_DIMENSION (default: 103), RECOMMEND_MIN_RATINGS (default: 5)
  - RECOMMEND_K_VALUES: comma-separated ascending k values (default: 1,2,5,7,10,15)
  - RECOMMEND_CANDIDATES_PER_CLUSTER, RECOMMEND_MIN_ITEMS_PER_CLUSTER
  - RECOMMEND_SIMILARITY_THRESHOLD, RECOMMEND_MIN_TOTAL
  - RECOMMEND_FETCH_CONCURRENCY, RECOMMEND_FETCH_TIMEOUT
  - RECOMMEND_STRATEGY: diverse, round_robin or mmr (default: diverse)
  - RECOMMEND_DIVERSITY_ALPHA, _LAMBDA, _BETA, _THRESHOLD, _TOP_K
  - RETRIEVAL_BREAKER_*, RETRIEVAL_RATE_PER_SECOND, RETRIEVAL_BURST

HTTP:
  - HTTP_HOST (default: 0.0.0.0), HTTP_PORT (default: 3857)
  - HTTP_TIMEOUT: per-request handler timeout (default: 10s)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT, CORS_ORIGINS

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal().Err(err).Msg("Failed to load configuration")
	}

# Thread Safety

Config is immutable after Load() and safe for concurrent reads.
*/
package config
