// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/tastemap/internal/recommend"
)

// nearestQuery ranks items by cosine distance to a query vector. A zero
// vector on either side has no defined similarity and scores 0; NaN
// results are mapped to distance 1 after the scan.
const nearestQuery = `
	SELECT
		i.id, i.name, i.category, i.producer, i.active, i.bias, i.popularity,
		e.embedding,
		1 - COALESCE(list_cosine_similarity(e.embedding, CAST(? AS DOUBLE[])), 0) AS distance
	FROM items i
	JOIN item_embeddings e ON e.item_id = i.id
	WHERE (? OR i.active)
	  AND NOT list_contains(CAST(? AS BIGINT[]), i.id)
	  AND len(e.embedding) = ?
	ORDER BY distance ASC, i.id ASC
	LIMIT ?`

// NearestToCentroids runs one ranked scan per centroid. Result i belongs to
// centroid i; items of a different dimension are ignored.
func (db *DB) NearestToCentroids(ctx context.Context, q recommend.CandidateQuery) ([][]recommend.Candidate, error) {
	start := time.Now()
	exclude := idListLiteral(q.ExcludeIDs)

	out := make([][]recommend.Candidate, len(q.Centroids))
	for ci, centroid := range q.Centroids {
		list, err := db.nearest(ctx, centroid, q.Limit, q.IncludeInactive, exclude)
		if err != nil {
			record("nearest_to_centroids", start, err)
			return nil, fmt.Errorf("centroid %d: %w", ci, err)
		}
		for i := range list {
			list[i].Cluster = ci
		}
		out[ci] = list
	}
	record("nearest_to_centroids", start, nil)
	return out, nil
}

// SimilarItems returns the nearest items to itemID's own embedding.
func (db *DB) SimilarItems(ctx context.Context, itemID int64, limit int, includeInactive bool) ([]recommend.Candidate, error) {
	vec, err := db.ItemEmbedding(ctx, itemID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	list, err := db.nearest(ctx, vec, limit, includeInactive, idListLiteral([]int64{itemID}))
	record("similar_items", start, err)
	return list, err
}

func (db *DB) nearest(ctx context.Context, query []float64, limit int, includeInactive bool, exclude string) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return []recommend.Candidate{}, nil
	}
	lit, err := vectorLiteral(query)
	if err != nil {
		return nil, err
	}

	out := make([]recommend.Candidate, 0, limit)
	err = db.withReconnect(ctx, func() error {
		out = out[:0]
		rows, err := db.conn.QueryContext(ctx, nearestQuery, lit, includeInactive, exclude, len(query), limit)
		if err != nil {
			return err
		}
		defer closeWithLog(ctx, rows, "rows")

		for rows.Next() {
			var (
				c   recommend.Candidate
				raw any
			)
			if err := rows.Scan(&c.ItemID, &c.Name, &c.Category, &c.Producer, &c.Active,
				&c.Bias, &c.Popularity, &raw, &c.Distance); err != nil {
				return fmt.Errorf("scan candidate: %w", err)
			}
			if math.IsNaN(c.Distance) {
				c.Distance = 1
			}
			if c.Embedding, err = scanVector(raw); err != nil {
				return fmt.Errorf("item %d: %w", c.ItemID, err)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest items: %w", err)
	}
	return out, nil
}
