// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package main is the entry point for the Tastemap server.

Tastemap recommends items from a user's ratings. It clusters the embeddings
of the items a user rated, picks the number of taste clusters adaptively,
retrieves nearest neighbours per cluster and merges them with a diversity
aware ranking.

# Application Architecture

Services run under Suture v4 supervision:

	RootSupervisor ("tastemap")
	├── DataSupervisor ("data-layer")
	│   ├── cache-janitor (memory cache) or badger-gc (badger cache)
	│   └── uptime
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Store: DuckDB, PostgreSQL/pgvector or in-memory
 4. Cache: memory, Badger, Redis or none
 5. Engine: embedding maintenance, clustering, ranking
 6. HTTP: chi router, rate limiting, Prometheus metrics
 7. Supervisor tree

# Configuration

Priority: Environment variables > Config file > Defaults

	STORE_DRIVER=duckdb          # duckdb, postgres, memory
	DUCKDB_PATH=/data/tastemap.duckdb
	POSTGRES_URL=postgres://...
	RETRIEVAL_PROTECTED=true     # circuit breaker + rate limiter on retrieval

	CACHE_BACKEND=memory         # memory, badger, redis, none
	CACHE_TTL=1h
	CACHE_BADGER_PATH=/data/cache
	REDIS_ADDR=localhost:6379

	RECOMMEND_K_VALUES=1,2,5,7,10,15
	RECOMMEND_STRATEGY=diverse   # diverse, round_robin, mmr

	HTTP_PORT=3857
	HTTP_TIMEOUT=10s
	CORS_ORIGINS=*
	RATE_LIMIT_REQUESTS=100
	RATE_LIMIT_WINDOW=1m

	LOG_LEVEL=info
	LOG_FORMAT=json

A config file named by CONFIG_PATH, or config.yaml in the working directory,
is watched; changing logging.level takes effect without a restart.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for up to
SHUTDOWN_TIMEOUT, then the cache backend and store are closed.

# Example Usage

	STORE_DRIVER=memory CACHE_BACKEND=memory ./tastemap

	curl -X PUT localhost:3857/api/v1/users/alice/ratings/42 -d '{"rating":4.5}'
	curl localhost:3857/api/v1/users/alice/recommendations?count=20
*/
package main
