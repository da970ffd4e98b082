// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tastemap/internal/recommend"
)

// AppendEvent records a rating event.
func (db *DB) AppendEvent(ctx context.Context, e recommend.Event) error {
	start := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = db.now()
	}
	var rating any
	if e.Type == recommend.EventRate {
		rating = e.Rating
	}
	err := db.withReconnect(ctx, func() error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO rating_events (id, event_type, user_id, item_id, rating, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), string(e.Type), e.UserID, e.ItemID, rating, e.CreatedAt.UTC())
		return err
	})
	record("append_event", start, err)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns a user's rating events, oldest first. limit <= 0 returns all.
func (db *DB) ListEvents(ctx context.Context, userID string, limit int) ([]recommend.Event, error) {
	query := `SELECT event_type, item_id, COALESCE(rating, 0), created_at
		FROM rating_events WHERE user_id = ? ORDER BY created_at, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer closeWithLog(ctx, rows, "rows")

	var out []recommend.Event
	for rows.Next() {
		e := recommend.Event{UserID: userID}
		var typ string
		if err := rows.Scan(&typ, &e.ItemID, &e.Rating, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = recommend.EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
