// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tastemap/internal/config"
	"github.com/tomtom215/tastemap/internal/database"
	"github.com/tomtom215/tastemap/internal/logging"
	"github.com/tomtom215/tastemap/internal/memstore"
	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/postgres"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/cache"
	"github.com/tomtom215/tastemap/internal/recommend/retrieval"
	"github.com/tomtom215/tastemap/internal/supervisor/services"
)

// openStore opens the store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (recommend.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverDuckDB, "":
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		return db, nil
	case config.DriverPostgres:
		pg, err := postgres.New(ctx, &cfg.Postgres, cfg.Recommend.Dimension)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return pg, nil
	case config.DriverMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newRetriever wraps candidate retrieval in the breaker and limiter when
// enabled. A nil return makes the engine query the store directly.
func newRetriever(store recommend.Store, cfg *config.Config) recommend.CandidateRetriever {
	if !cfg.Store.ProtectRetrieval {
		return nil
	}
	return retrieval.New(store, cfg.Retrieval, logging.Component("retrieval"))
}

// cacheComponents is the candidate cache plus whatever keeps its backend
// healthy.
type cacheComponents struct {
	Cache       cache.Cache
	Maintenance []suture.Service
	closers     []func() error
}

// Close releases backend resources in reverse order.
func (c *cacheComponents) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logging.Error().Err(err).Msg("Error closing cache backend")
		}
	}
}

// initCache builds the cache for CACHE_BACKEND.
func initCache(ctx context.Context, cfg *config.Config) (*cacheComponents, error) {
	logger := logging.Component("cache")
	opts := cache.Options{
		TTL:               cfg.Cache.TTL,
		MaxEntriesPerUser: cfg.Cache.MaxEntriesPerUser,
		MaxEntryBytes:     cfg.Cache.MaxEntryBytes,
	}
	cc := &cacheComponents{}

	switch cfg.Cache.Backend {
	case config.CacheNone:
		cc.Cache = cache.Nop{}

	case config.CacheMemory, "":
		backend := cache.NewMemoryBackend()
		cc.Cache = cache.New(backend, opts, logger)
		cc.Maintenance = append(cc.Maintenance, services.NewPeriodicService(
			func(context.Context) error {
				if n := backend.Cleanup(); n > 0 {
					logger.Debug().Int("expired", n).Int("remaining", backend.Len()).Msg("Swept expired cache entries")
				}
				return nil
			},
			services.PeriodicConfig{Name: "cache-janitor", Interval: cfg.Cache.JanitorInterval},
			logger,
		))

	case config.CacheBadger:
		db, err := cache.OpenBadger(cfg.Cache.Badger.Path)
		if err != nil {
			return nil, fmt.Errorf("open badger cache: %w", err)
		}
		backend := cache.NewBadgerBackend(db)
		cc.closers = append(cc.closers, backend.Close)
		cc.Cache = cache.New(backend, opts, logger)
		ratio := cfg.Cache.Badger.DiscardRatio
		cc.Maintenance = append(cc.Maintenance, services.NewPeriodicService(
			func(context.Context) error {
				n, err := backend.RunGC(ratio)
				if err != nil {
					return err
				}
				if n > 0 {
					logger.Debug().Int("rewrites", n).Msg("Badger value log GC")
				}
				return nil
			},
			services.PeriodicConfig{Name: "badger-gc", Interval: cfg.Cache.Badger.GCInterval},
			logger,
		))

	case config.CacheRedis:
		rdb, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:        cfg.Cache.Redis.Addr,
			Password:    cfg.Cache.Redis.Password,
			DB:          cfg.Cache.Redis.DB,
			DialTimeout: cfg.Cache.Redis.DialTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		cc.closers = append(cc.closers, rdb.Close)
		cc.Cache = cache.New(cache.NewRedisBackend(rdb), opts, logger)

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	logger.Info().
		Str("backend", cfg.Cache.Backend).
		Dur("ttl", cfg.Cache.TTL).
		Int("max_entries_per_user", cfg.Cache.MaxEntriesPerUser).
		Msg("Recommendation cache initialized")
	return cc, nil
}

// uptimeService keeps the uptime gauge current.
func uptimeService(started time.Time) suture.Service {
	return services.NewPeriodicService(
		func(context.Context) error {
			metrics.AppUptime.Set(time.Since(started).Seconds())
			return nil
		},
		services.PeriodicConfig{Name: "uptime", Interval: 15 * time.Second, RunOnStart: true},
		logging.Component("uptime"),
	)
}
