// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/retrieval"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Configuration Categories:
//
//  1. Storage:
//     - Store: which recommend.Store implementation backs the engine
//     - Database: DuckDB settings
//     - Postgres: PostgreSQL/pgvector settings
//     - Cache: recommendation cache backend and limits
//
//  2. Recommendation:
//     - Recommend: clustering, selection and ranking parameters
//     - Retrieval: circuit breaker and rate limiter around candidate retrieval
//
//  3. HTTP:
//     - Server: listen address and timeouts
//     - Security: rate limiting and CORS
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Store     StoreConfig      `koanf:"store"`
	Database  DatabaseConfig   `koanf:"database"`
	Postgres  PostgresConfig   `koanf:"postgres"`
	Cache     CacheConfig      `koanf:"cache"`
	Recommend recommend.Config `koanf:"recommend"`
	Retrieval retrieval.Config `koanf:"retrieval"`
	Server    ServerConfig     `koanf:"server"`
	Security  SecurityConfig   `koanf:"security"`
	Logging   LoggingConfig    `koanf:"logging"`
}

// Store drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StoreConfig selects the storage implementation.
//
// Environment Variables:
//   - STORE_DRIVER: duckdb, postgres or memory (default: duckdb)
//   - RETRIEVAL_PROTECTED: wrap candidate retrieval in a circuit breaker (default: true)
type StoreConfig struct {
	Driver string `koanf:"driver"`

	// ProtectRetrieval wraps candidate retrieval with the circuit breaker
	// and rate limiter configured under Retrieval.
	ProtectRetrieval bool `koanf:"protect_retrieval"`
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                  // Number of DuckDB threads (0 = use NumCPU)
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"` // Whether to preserve insertion order
}

// PostgresConfig holds PostgreSQL/pgvector settings.
type PostgresConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`

	// CreateIndex builds an HNSW index on item embeddings at startup.
	CreateIndex bool `koanf:"create_index"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// CacheConfig configures the recommendation cache.
//
// Environment Variables:
//   - CACHE_BACKEND: memory, badger, redis or none (default: memory)
//   - CACHE_TTL: entry lifetime (default: 1h)
//   - CACHE_BADGER_PATH: badger directory, empty for in-memory (default: /data/cache)
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: redis connection
type CacheConfig struct {
	Backend           string        `koanf:"backend"`
	TTL               time.Duration `koanf:"ttl"`
	MaxEntriesPerUser int           `koanf:"max_entries_per_user"`
	MaxEntryBytes     int           `koanf:"max_entry_bytes"`

	// JanitorInterval is how often expired memory entries are swept.
	JanitorInterval time.Duration `koanf:"janitor_interval"`

	Badger BadgerConfig `koanf:"badger"`
	Redis  RedisConfig  `koanf:"redis"`
}

// BadgerConfig holds badger cache backend settings.
type BadgerConfig struct {
	Path         string        `koanf:"path"`
	GCInterval   time.Duration `koanf:"gc_interval"`
	DiscardRatio float64       `koanf:"discard_ratio"`
}

// RedisConfig holds redis cache backend settings.
type RedisConfig struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`

	// Timeout bounds each handler via context.
	Timeout         time.Duration `koanf:"timeout"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Environment string `koanf:"environment"` // "development", "staging", "production"
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds rate limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load loads configuration with Koanf: defaults, then config file, then env.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
