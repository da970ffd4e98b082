// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:   "memory store",
			mutate: func(c *Config) { c.Store.Driver = DriverMemory },
		},
		{
			name: "postgres store",
			mutate: func(c *Config) {
				c.Store.Driver = DriverPostgres
				c.Postgres.URL = "postgres://tastemap@localhost:5432/tastemap"
			},
		},
		{
			name: "postgres bad scheme",
			mutate: func(c *Config) {
				c.Store.Driver = DriverPostgres
				c.Postgres.URL = "mysql://localhost"
			},
			wantErr: "POSTGRES_URL",
		},
		{
			name: "postgres min above max",
			mutate: func(c *Config) {
				c.Store.Driver = DriverPostgres
				c.Postgres.URL = "postgresql://localhost/tastemap"
				c.Postgres.MinConns = 20
			},
			wantErr: "POSTGRES_MIN_CONNS",
		},
		{
			name:    "negative duckdb threads",
			mutate:  func(c *Config) { c.Database.Threads = -1 },
			wantErr: "DUCKDB_THREADS",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "memcached" },
			wantErr: "CACHE_BACKEND",
		},
		{
			name: "cache disabled ignores limits",
			mutate: func(c *Config) {
				c.Cache.Backend = CacheNone
				c.Cache.TTL = 0
			},
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Cache.TTL = 0 },
			wantErr: "CACHE_TTL",
		},
		{
			name:    "zero entries per user",
			mutate:  func(c *Config) { c.Cache.MaxEntriesPerUser = 0 },
			wantErr: "CACHE_MAX_ENTRIES_PER_USER",
		},
		{
			name: "badger discard ratio",
			mutate: func(c *Config) {
				c.Cache.Backend = CacheBadger
				c.Cache.Badger.DiscardRatio = 1
			},
			wantErr: "CACHE_BADGER_DISCARD_RATIO",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Cache.Backend = CacheRedis
				c.Cache.Redis.Addr = ""
			},
			wantErr: "REDIS_ADDR",
		},
		{
			name:    "invalid recommend config",
			mutate:  func(c *Config) { c.Recommend.MinRatings = 0 },
			wantErr: "recommend: min_ratings",
		},
		{
			name:    "breaker failure ratio",
			mutate:  func(c *Config) { c.Retrieval.FailureRatio = 0 },
			wantErr: "RETRIEVAL_BREAKER_FAILURE_RATIO",
		},
		{
			name: "unprotected retrieval skips breaker checks",
			mutate: func(c *Config) {
				c.Store.ProtectRetrieval = false
				c.Retrieval.FailureRatio = 0
			},
		},
		{
			name:    "rate limit window too short",
			mutate:  func(c *Config) { c.Security.RateLimitWindow = time.Millisecond },
			wantErr: "RATE_LIMIT_WINDOW",
		},
		{
			name: "rate limit disabled",
			mutate: func(c *Config) {
				c.Security.RateLimitDisabled = true
				c.Security.RateLimitReqs = 0
			},
		},
		{
			name:    "log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT",
		},
		{
			name:    "zero handler timeout",
			mutate:  func(c *Config) { c.Server.Timeout = 0 },
			wantErr: "HTTP_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env        string
		production bool
		dev        bool
	}{
		{"production", true, false},
		{"PROD", true, false},
		{"development", false, true},
		{"", false, true},
		{"staging", false, false},
	}
	for _, tt := range tests {
		cfg := defaultConfig()
		cfg.Server.Environment = tt.env
		if got := cfg.IsProduction(); got != tt.production {
			t.Errorf("IsProduction(%q) = %v", tt.env, got)
		}
		if got := cfg.IsDevelopment(); got != tt.dev {
			t.Errorf("IsDevelopment(%q) = %v", tt.env, got)
		}
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard CORS in production should warn")
	}
	cfg.Security.CORSOrigins = []string{"https://tastemap.example"}
	if cfg.ShouldWarnAboutCORS() {
		t.Error("explicit origins should not warn")
	}
	cfg.Security.CORSOrigins = []string{"*"}
	cfg.Server.Environment = "development"
	if cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard CORS in development should not warn")
	}
}

func TestServerAddr(t *testing.T) {
	t.Parallel()

	s := ServerConfig{Host: "127.0.0.1", Port: 3857}
	if got := s.Addr(); got != "127.0.0.1:3857" {
		t.Errorf("Addr() = %q", got)
	}
}
