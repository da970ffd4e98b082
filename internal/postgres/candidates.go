// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/tastemap/internal/recommend"
)

// nearestQuery orders by the pgvector cosine distance operator so the HNSW
// index serves the scan.
const nearestQuery = `
	SELECT
		i.id, i.name, i.category, i.producer, i.active, i.bias, i.popularity,
		e.embedding::text,
		e.embedding <=> $1::vector AS distance
	FROM item_embeddings e
	JOIN items i ON i.id = e.item_id
	WHERE ($2 OR i.active)
	  AND NOT (i.id = ANY($3))
	ORDER BY e.embedding <=> $1::vector, i.id
	LIMIT $4`

func (s *Store) NearestToCentroids(ctx context.Context, q recommend.CandidateQuery) ([][]recommend.Candidate, error) {
	start := time.Now()
	exclude := q.ExcludeIDs
	if exclude == nil {
		exclude = []int64{}
	}

	out := make([][]recommend.Candidate, len(q.Centroids))
	for ci, centroid := range q.Centroids {
		list, err := s.nearest(ctx, centroid, q.Limit, q.IncludeInactive, exclude)
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

func (s *Store) SimilarItems(ctx context.Context, itemID int64, limit int, includeInactive bool) ([]recommend.Candidate, error) {
	vec, err := s.ItemEmbedding(ctx, itemID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	list, err := s.nearest(ctx, vec, limit, includeInactive, []int64{itemID})
	record("similar_items", start, err)
	return list, err
}

func (s *Store) nearest(ctx context.Context, query []float64, limit int, includeInactive bool, exclude []int64) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return []recommend.Candidate{}, nil
	}
	lit, err := formatVector(query)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, nearestQuery, lit, includeInactive, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest items: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanCandidate)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest items: %w", err)
	}
	if out == nil {
		out = []recommend.Candidate{}
	}
	return out, nil
}

func scanCandidate(row pgx.CollectableRow) (recommend.Candidate, error) {
	var (
		c    recommend.Candidate
		text string
	)
	if err := row.Scan(&c.ItemID, &c.Name, &c.Category, &c.Producer, &c.Active,
		&c.Bias, &c.Popularity, &text, &c.Distance); err != nil {
		return c, err
	}
	vec, err := parseVector(text)
	if err != nil {
		return c, fmt.Errorf("item %d: %w", c.ItemID, err)
	}
	c.Embedding = vec
	return c, nil
}
