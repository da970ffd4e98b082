// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/retrieval"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tastemap/config.yaml",
	"/etc/tastemap/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:           DriverDuckDB,
			ProtectRetrieval: true,
		},
		Database: DatabaseConfig{
			Path:                   "/data/tastemap.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: false,
		},
		Postgres: PostgresConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			CreateIndex:     true,
		},
		Cache: CacheConfig{
			Backend:           CacheMemory,
			TTL:               time.Hour,
			MaxEntriesPerUser: 3,
			MaxEntryBytes:     4 << 20,
			JanitorInterval:   5 * time.Minute,
			Badger: BadgerConfig{
				Path:         "/data/cache",
				GCInterval:   10 * time.Minute,
				DiscardRatio: 0.5,
			},
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				DialTimeout: 5 * time.Second,
			},
		},
		Recommend: *recommend.DefaultConfig(),
		Retrieval: retrieval.DefaultConfig(),
		Server: ServerConfig{
			Port:            3857,
			Host:            "0.0.0.0",
			Timeout:         10 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "production",
		},
		Security: SecurityConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
//
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// STORE_DRIVER -> store.driver
	// RECOMMEND_K_VALUES -> recommend.k_values
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// FilePath returns the config file Load would read, or "" when none exists.
func FilePath() string {
	return findConfigFile()
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"recommend.k_values",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps supported environment variables (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Storage
	"store_driver":        "store.driver",
	"retrieval_protected": "store.protect_retrieval",

	"duckdb_path":                     "database.path",
	"duckdb_max_memory":               "database.max_memory",
	"duckdb_threads":                  "database.threads",
	"duckdb_preserve_insertion_order": "database.preserve_insertion_order",

	"postgres_url":               "postgres.url",
	"postgres_max_conns":         "postgres.max_conns",
	"postgres_min_conns":         "postgres.min_conns",
	"postgres_max_conn_lifetime": "postgres.max_conn_lifetime",
	"postgres_create_index":      "postgres.create_index",

	// Cache
	"cache_backend":              "cache.backend",
	"cache_ttl":                  "cache.ttl",
	"cache_max_entries_per_user": "cache.max_entries_per_user",
	"cache_max_entry_bytes":      "cache.max_entry_bytes",
	"cache_janitor_interval":     "cache.janitor_interval",
	"cache_badger_path":          "cache.badger.path",
	"cache_badger_gc_interval":   "cache.badger.gc_interval",
	"cache_badger_discard_ratio": "cache.badger.discard_ratio",
	"redis_addr":                 "cache.redis.addr",
	"redis_password":             "cache.redis.password",
	"redis_db":                   "cache.redis.db",
	"redis_dial_timeout":         "cache.redis.dial_timeout",

	// Recommendation engine
	"recommend_dimension":              "recommend.dimension",
	"recommend_min_ratings":            "recommend.min_ratings",
	"recommend_k_values":               "recommend.k_values",
	"recommend_candidates_per_cluster": "recommend.candidates_per_cluster",
	"recommend_min_items_per_cluster":  "recommend.min_items_per_cluster",
	"recommend_similarity_threshold":   "recommend.similarity_threshold",
	"recommend_min_total":              "recommend.min_total_recommendations",
	"recommend_fetch_concurrency":      "recommend.fetch_concurrency",
	"recommend_fetch_timeout":          "recommend.fetch_timeout",
	"recommend_kmeans_max_iterations":  "recommend.clustering.max_iterations",
	"recommend_kmeans_tolerance":       "recommend.clustering.tolerance",
	"recommend_strategy":               "recommend.ranking.strategy",
	"recommend_look_ahead":             "recommend.ranking.look_ahead",
	"recommend_mmr_lambda":             "recommend.ranking.mmr_lambda",
	"recommend_diversity_alpha":        "recommend.ranking.params.alpha",
	"recommend_diversity_lambda":       "recommend.ranking.params.lambda",
	"recommend_diversity_beta":         "recommend.ranking.params.beta",
	"recommend_diversity_threshold":    "recommend.ranking.params.threshold",
	"recommend_diversity_top_k":        "recommend.ranking.params.top_k",
	"recommend_default_page_size":      "recommend.default_page_size",
	"recommend_max_page_size":          "recommend.max_page_size",
	"recommend_similar_limit":          "recommend.similar_limit",
	"retrieval_breaker_max_requests":   "retrieval.max_requests",
	"retrieval_breaker_interval":       "retrieval.interval",
	"retrieval_breaker_timeout":        "retrieval.timeout",
	"retrieval_breaker_min_requests":   "retrieval.min_requests",
	"retrieval_breaker_failure_ratio":  "retrieval.failure_ratio",
	"retrieval_rate_per_second":        "retrieval.rate_per_second",
	"retrieval_burst":                  "retrieval.burst",

	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"idle_timeout":     "server.idle_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Security
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
//   - RECOMMEND_K_VALUES -> recommend.k_values
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// never pollute the configuration.
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for mutex protection when swapping configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
