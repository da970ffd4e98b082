// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	if err := c.validateRetrieval(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateStore validates the storage driver and its settings
func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverDuckDB:
		return c.validateDuckDB()
	case DriverPostgres:
		return c.validatePostgres()
	case DriverMemory:
		return nil
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: duckdb, postgres, memory")
	}
}

func (c *Config) validateDuckDB() error {
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0")
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.Postgres.URL == "" {
		return fmt.Errorf("POSTGRES_URL is required when STORE_DRIVER=postgres")
	}
	if !strings.HasPrefix(c.Postgres.URL, "postgres://") && !strings.HasPrefix(c.Postgres.URL, "postgresql://") {
		return fmt.Errorf("POSTGRES_URL must use the postgres:// or postgresql:// scheme")
	}
	if c.Postgres.MaxConns < 1 {
		return fmt.Errorf("POSTGRES_MAX_CONNS must be positive")
	}
	if c.Postgres.MinConns < 0 || c.Postgres.MinConns > c.Postgres.MaxConns {
		return fmt.Errorf("POSTGRES_MIN_CONNS must be between 0 and POSTGRES_MAX_CONNS")
	}
	return nil
}

// validateCache validates the recommendation cache configuration
func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheNone:
		return nil
	case CacheMemory, CacheBadger, CacheRedis:
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: memory, badger, redis, none")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Cache.MaxEntriesPerUser < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES_PER_USER must be at least 1")
	}
	if c.Cache.MaxEntryBytes < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRY_BYTES must be positive")
	}

	switch c.Cache.Backend {
	case CacheMemory:
		if c.Cache.JanitorInterval <= 0 {
			return fmt.Errorf("CACHE_JANITOR_INTERVAL must be positive")
		}
	case CacheBadger:
		if c.Cache.Badger.GCInterval <= 0 {
			return fmt.Errorf("CACHE_BADGER_GC_INTERVAL must be positive")
		}
		if c.Cache.Badger.DiscardRatio <= 0 || c.Cache.Badger.DiscardRatio >= 1 {
			return fmt.Errorf("CACHE_BADGER_DISCARD_RATIO must be in (0, 1)")
		}
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	}
	return nil
}

// validateRetrieval validates the circuit breaker around candidate retrieval
func (c *Config) validateRetrieval() error {
	if !c.Store.ProtectRetrieval {
		return nil
	}
	r := c.Retrieval
	if r.FailureRatio <= 0 || r.FailureRatio > 1 {
		return fmt.Errorf("RETRIEVAL_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("RETRIEVAL_BREAKER_TIMEOUT must be positive")
	}
	if r.RatePerSecond > 0 && r.Burst < 1 {
		return fmt.Errorf("RETRIEVAL_BURST must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	return c.validateRateLimits()
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if wildcard CORS is configured in production
// and should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS() && c.IsProduction()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
