// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/tastemap/internal/recommend"
)

func (s *Store) GetRating(ctx context.Context, userID string, itemID int64) (recommend.Rating, error) {
	start := time.Now()
	r := recommend.Rating{UserID: userID, ItemID: itemID}
	err := s.pool.QueryRow(ctx,
		`SELECT rating, updated_at FROM ratings WHERE user_id = $1 AND item_id = $2`,
		userID, itemID).Scan(&r.Rating, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		record("get_rating", start, nil)
		return recommend.Rating{}, recommend.ErrNotFound
	}
	record("get_rating", start, err)
	if err != nil {
		return recommend.Rating{}, fmt.Errorf("failed to get rating: %w", err)
	}
	return r, nil
}

func (s *Store) UpsertRating(ctx context.Context, r recommend.Rating) error {
	start := time.Now()
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = s.now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ratings (user_id, item_id, rating, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			updated_at = EXCLUDED.updated_at`,
		r.UserID, r.ItemID, r.Rating, r.UpdatedAt)
	record("upsert_rating", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}

func (s *Store) DeleteRating(ctx context.Context, userID string, itemID int64) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `DELETE FROM ratings WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	record("delete_rating", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recommend.ErrNotFound
	}
	return nil
}

func (s *Store) CountRatings(ctx context.Context, userID string) (int, error) {
	start := time.Now()
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ratings WHERE user_id = $1`, userID).Scan(&n)
	record("count_ratings", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count ratings: %w", err)
	}
	return n, nil
}

func (s *Store) ListRatings(ctx context.Context, userID string) ([]recommend.Rating, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, rating, updated_at FROM ratings WHERE user_id = $1 ORDER BY item_id`, userID)
	if err != nil {
		record("list_ratings", start, err)
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (recommend.Rating, error) {
		r := recommend.Rating{UserID: userID}
		err := row.Scan(&r.ItemID, &r.Rating, &r.UpdatedAt)
		return r, err
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

func (s *Store) ItemEmbedding(ctx context.Context, itemID int64) ([]float64, error) {
	start := time.Now()
	var text string
	err := s.pool.QueryRow(ctx,
		`SELECT embedding::text FROM item_embeddings WHERE item_id = $1`, itemID).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		record("item_embedding", start, nil)
		return nil, recommend.ErrNotFound
	}
	record("item_embedding", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get item embedding: %w", err)
	}
	return parseVector(text)
}

func (s *Store) ItemEmbeddings(ctx context.Context, itemIDs []int64) (map[int64][]float64, error) {
	out := make(map[int64][]float64, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, embedding::text FROM item_embeddings WHERE item_id = ANY($1)`, itemIDs)
	if err != nil {
		record("item_embeddings", start, err)
		return nil, fmt.Errorf("failed to load item embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			record("item_embeddings", start, err)
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vec, err := parseVector(text)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", id, err)
		}
		out[id] = vec
	}
	err = rows.Err()
	record("item_embeddings", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load item embeddings: %w", err)
	}
	return out, nil
}

func (s *Store) UserEmbedding(ctx context.Context, userID string) ([]float64, error) {
	start := time.Now()
	var vec []float64
	err := s.pool.QueryRow(ctx, `SELECT embedding FROM user_embeddings WHERE user_id = $1`, userID).Scan(&vec)
	if errors.Is(err, pgx.ErrNoRows) {
		record("user_embedding", start, nil)
		return nil, recommend.ErrNotFound
	}
	record("user_embedding", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get user embedding: %w", err)
	}
	return vec, nil
}

func (s *Store) SetUserEmbedding(ctx context.Context, userID string, vec []float64) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_embeddings (user_id, embedding, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at`,
		userID, vec, s.now())
	record("set_user_embedding", start, err)
	if err != nil {
		return fmt.Errorf("failed to set user embedding: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserEmbedding(ctx context.Context, userID string) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, `DELETE FROM user_embeddings WHERE user_id = $1`, userID)
	record("delete_user_embedding", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete user embedding: %w", err)
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, e recommend.Event) error {
	start := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	var rating *float64
	if e.Type == recommend.EventRate {
		rating = &e.Rating
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rating_events (event_type, user_id, item_id, rating, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(e.Type), e.UserID, e.ItemID, rating, e.CreatedAt)
	record("append_event", start, err)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// UpsertItems writes items and embeddings in one batch inside a transaction.
// An item without an embedding has any stored embedding removed.
func (s *Store) UpsertItems(ctx context.Context, items []recommend.Item) error {
	if len(items) == 0 {
		return nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for i := range items {
		it := &items[i]
		batch.Queue(`
			INSERT INTO items (id, name, category, producer, active, bias, popularity, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				category = EXCLUDED.category,
				producer = EXCLUDED.producer,
				active = EXCLUDED.active,
				bias = EXCLUDED.bias,
				popularity = EXCLUDED.popularity,
				updated_at = EXCLUDED.updated_at`,
			it.ID, it.Name, it.Category, it.Producer, it.Active, it.Bias, it.Popularity)

		if len(it.Embedding) == 0 {
			batch.Queue(`DELETE FROM item_embeddings WHERE item_id = $1`, it.ID)
			continue
		}
		lit, err := formatVector(it.Embedding)
		if err != nil {
			return fmt.Errorf("item %d: %w", it.ID, err)
		}
		batch.Queue(`
			INSERT INTO item_embeddings (item_id, embedding) VALUES ($1, $2::vector)
			ON CONFLICT (item_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
			it.ID, lit)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	record("upsert_items", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert items: %w", err)
	}
	return nil
}
