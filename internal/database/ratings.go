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

// GetRating returns the rating for (user, item), or recommend.ErrNotFound.
func (db *DB) GetRating(ctx context.Context, userID string, itemID int64) (recommend.Rating, error) {
	start := time.Now()
	r := recommend.Rating{UserID: userID, ItemID: itemID}
	err := db.withReconnect(ctx, func() error {
		return db.conn.QueryRowContext(ctx,
			`SELECT rating, updated_at FROM ratings WHERE user_id = ? AND item_id = ?`,
			userID, itemID).Scan(&r.Rating, &r.UpdatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		record("get_rating", start, nil)
		return recommend.Rating{}, recommend.ErrNotFound
	}
	record("get_rating", start, err)
	if err != nil {
		return recommend.Rating{}, fmt.Errorf("failed to get rating: %w", err)
	}
	return r, nil
}

// UpsertRating creates or replaces a rating.
func (db *DB) UpsertRating(ctx context.Context, r recommend.Rating) error {
	start := time.Now()
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = db.now()
	}
	err := db.withReconnect(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT OR REPLACE INTO ratings (user_id, item_id, rating, updated_at) VALUES (?, ?, ?, ?)`,
			r.UserID, r.ItemID, r.Rating, r.UpdatedAt.UTC())
		return err
	})
	record("upsert_rating", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}

// DeleteRating removes a rating. A missing rating yields recommend.ErrNotFound.
func (db *DB) DeleteRating(ctx context.Context, userID string, itemID int64) error {
	start := time.Now()
	var affected int64
	err := db.withReconnect(ctx, func() error {
		res, err := db.conn.ExecContext(ctx,
			`DELETE FROM ratings WHERE user_id = ? AND item_id = ?`, userID, itemID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	record("delete_rating", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}
	if affected == 0 {
		return recommend.ErrNotFound
	}
	return nil
}

// CountRatings returns the number of ratings the user holds.
func (db *DB) CountRatings(ctx context.Context, userID string) (int, error) {
	start := time.Now()
	var n int
	err := db.withReconnect(ctx, func() error {
		return db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM ratings WHERE user_id = ?`, userID).Scan(&n)
	})
	record("count_ratings", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return n, nil
}

// ListRatings returns all ratings of a user ordered by item ID.
func (db *DB) ListRatings(ctx context.Context, userID string) ([]recommend.Rating, error) {
	start := time.Now()
	var out []recommend.Rating
	err := db.withReconnect(ctx, func() error {
		out = out[:0]
		rows, err := db.conn.QueryContext(ctx,
			`SELECT item_id, rating, updated_at FROM ratings WHERE user_id = ? ORDER BY item_id`, userID)
		if err != nil {
			return err
		}
		defer closeWithLog(ctx, rows, "rows")

		for rows.Next() {
			r := recommend.Rating{UserID: userID}
			if err := rows.Scan(&r.ItemID, &r.Rating, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan rating: %w", err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	record("list_ratings", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	if out == nil {
		out = []recommend.Rating{}
	}
	return out, nil
}
