// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/tastemap/internal/recommend"
)

// ItemEmbedding returns one item's embedding, or recommend.ErrNotFound.
func (db *DB) ItemEmbedding(ctx context.Context, itemID int64) ([]float64, error) {
	start := time.Now()
	var raw any
	err := db.withReconnect(ctx, func() error {
		return db.conn.QueryRowContext(ctx,
			`SELECT embedding FROM item_embeddings WHERE item_id = ?`, itemID).Scan(&raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		record("item_embedding", start, nil)
		return nil, recommend.ErrNotFound
	}
	record("item_embedding", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get item embedding: %w", err)
	}
	vec, err := scanVector(raw)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", itemID, err)
	}
	if len(vec) == 0 {
		return nil, recommend.ErrNotFound
	}
	return vec, nil
}

// ItemEmbeddings returns the embeddings of the requested items. Items
// without an embedding are absent from the map.
func (db *DB) ItemEmbeddings(ctx context.Context, itemIDs []int64) (map[int64][]float64, error) {
	out := make(map[int64][]float64, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	start := time.Now()
	err := db.withReconnect(ctx, func() error {
		rows, err := db.conn.QueryContext(ctx,
			`SELECT item_id, embedding FROM item_embeddings
			 WHERE list_contains(CAST(? AS BIGINT[]), item_id)`,
			idListLiteral(itemIDs))
		if err != nil {
			return err
		}
		defer closeWithLog(ctx, rows, "rows")

		for rows.Next() {
			var (
				id  int64
				raw any
			)
			if err := rows.Scan(&id, &raw); err != nil {
				return fmt.Errorf("scan embedding: %w", err)
			}
			vec, err := scanVector(raw)
			if err != nil {
				return fmt.Errorf("item %d: %w", id, err)
			}
			if len(vec) > 0 {
				out[id] = vec
			}
		}
		return rows.Err()
	})
	record("item_embeddings", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load item embeddings: %w", err)
	}
	return out, nil
}

// UserEmbedding returns the accumulated user vector, or recommend.ErrNotFound.
func (db *DB) UserEmbedding(ctx context.Context, userID string) ([]float64, error) {
	start := time.Now()
	var raw any
	err := db.withReconnect(ctx, func() error {
		return db.conn.QueryRowContext(ctx,
			`SELECT embedding FROM user_embeddings WHERE user_id = ?`, userID).Scan(&raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		record("user_embedding", start, nil)
		return nil, recommend.ErrNotFound
	}
	record("user_embedding", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get user embedding: %w", err)
	}
	return scanVector(raw)
}

// SetUserEmbedding creates or replaces the user vector.
func (db *DB) SetUserEmbedding(ctx context.Context, userID string, vec []float64) error {
	lit, err := vectorLiteral(vec)
	if err != nil {
		return fmt.Errorf("user %s: %w", userID, err)
	}
	start := time.Now()
	err = db.withReconnect(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT OR REPLACE INTO user_embeddings (user_id, embedding, updated_at)
			 VALUES (?, CAST(? AS DOUBLE[]), ?)`,
			userID, lit, db.now().UTC())
		return err
	})
	record("set_user_embedding", start, err)
	if err != nil {
		return fmt.Errorf("failed to set user embedding: %w", err)
	}
	return nil
}

// DeleteUserEmbedding removes the user vector. Missing vectors are not an error.
func (db *DB) DeleteUserEmbedding(ctx context.Context, userID string) error {
	start := time.Now()
	err := db.withReconnect(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `DELETE FROM user_embeddings WHERE user_id = ?`, userID)
		return err
	})
	record("delete_user_embedding", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete user embedding: %w", err)
	}
	return nil
}
