// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
database_schema.go - Database Schema Management

Tables:
  - items: catalog metadata and quality signals
  - item_embeddings: one DOUBLE[] taste vector per item
  - ratings: explicit (user, item, rating) records, one per pair
  - user_embeddings: accumulated user vectors
  - rating_events: append-only log of rate/unrate operations

All vectors are DOUBLE[] lists so list_cosine_similarity works without
extensions. Timestamps are stored as UTC TIMESTAMP values.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			producer TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			bias DOUBLE NOT NULL DEFAULT 0,
			popularity INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS item_embeddings (
			item_id BIGINT PRIMARY KEY,
			embedding DOUBLE[] NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS ratings (
			user_id TEXT NOT NULL,
			item_id BIGINT NOT NULL,
			rating DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, item_id)
		);`,

		`CREATE TABLE IF NOT EXISTS user_embeddings (
			user_id TEXT PRIMARY KEY,
			embedding DOUBLE[] NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS rating_events (
			id UUID PRIMARY KEY,
			event_type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			item_id BIGINT NOT NULL,
			rating DOUBLE,
			created_at TIMESTAMP NOT NULL
		);`,
	}
}

// createIndexes creates secondary indexes. Tables written with INSERT OR
// REPLACE carry no secondary indexes: DuckDB refuses to replace rows in
// columns referenced by an index.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_rating_events_user_time ON rating_events(user_id, created_at);`,
	}
	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
