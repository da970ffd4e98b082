// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package postgres implements recommend.Store on PostgreSQL with the
// pgvector extension.
//
// Item embeddings are stored as vector(n) with an HNSW index using
// vector_cosine_ops, so candidate retrieval is an approximate nearest
// neighbour search through the <=> operator. User vectors are stored as
// DOUBLE PRECISION[] to keep the incremental add/subtract updates exact.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/tastemap/internal/config"
	"github.com/tomtom215/tastemap/internal/logging"
	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/recommend"
)

const driverName = "postgres"

// Store is a pgx connection pool plus the schema it manages.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	now       func() time.Time
}

var _ recommend.Store = (*Store)(nil)

// New connects, pings and migrates. dimension fixes the vector column width;
// zero leaves it unconstrained and skips the HNSW index.
func New(ctx context.Context, cfg *config.PostgresConfig, dimension int) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres: url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{pool: pool, dimension: dimension, now: time.Now}
	if err := s.migrate(ctx, cfg.CreateIndex); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	logging.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Int32("max_conns", poolCfg.MaxConns).
		Int("dimension", dimension).
		Msg("PostgreSQL store ready")
	return s, nil
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the pool for health reporting.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) migrate(ctx context.Context, createIndex bool) error {
	for _, stmt := range schemaStatements(s.dimension, createIndex) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func schemaStatements(dimension int, createIndex bool) []string {
	vectorType := "vector"
	if dimension > 0 {
		vectorType = fmt.Sprintf("vector(%d)", dimension)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			producer TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			bias DOUBLE PRECISION NOT NULL DEFAULT 0,
			popularity INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS item_embeddings (
			item_id BIGINT PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
			embedding %s NOT NULL
		)`, vectorType),
		`CREATE TABLE IF NOT EXISTS ratings (
			user_id TEXT NOT NULL,
			item_id BIGINT NOT NULL,
			rating DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_embeddings (
			user_id TEXT PRIMARY KEY,
			embedding DOUBLE PRECISION[] NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS rating_events (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			item_id BIGINT NOT NULL,
			rating DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rating_events_user_time ON rating_events (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_items_active ON items (active)`,
	}
	if createIndex && dimension > 0 {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_item_embeddings_hnsw ON item_embeddings USING hnsw (embedding vector_cosine_ops)`)
	}
	return stmts
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

func record(op string, start time.Time, err error) {
	metrics.RecordDBQuery(driverName, op, time.Since(start), err)
}
