// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package memstore is an in-process implementation of recommend.Store.
//
// Candidate retrieval is a brute-force cosine scan over every item, which is
// fine for tests, demos and catalogs of a few tens of thousands of items.
// Nothing is persisted.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/vecmath"
)

const driverName = "memory"

type ratingKey struct {
	userID string
	itemID int64
}

// Store keeps items, ratings, user vectors and events in maps.
type Store struct {
	mu       sync.RWMutex
	items    map[int64]recommend.Item
	ratings  map[ratingKey]recommend.Rating
	byUser   map[string]map[int64]struct{}
	userVecs map[string][]float64
	events   []recommend.Event
	closed   bool
}

var _ recommend.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		items:    make(map[int64]recommend.Item),
		ratings:  make(map[ratingKey]recommend.Rating),
		byUser:   make(map[string]map[int64]struct{}),
		userVecs: make(map[string][]float64),
	}
}

func record(op string, start time.Time, err error) {
	metrics.RecordDBQuery(driverName, op, time.Since(start), err)
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("memstore: closed")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOpen()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// UpsertItems replaces items by ID. Embeddings are copied.
func (s *Store) UpsertItems(ctx context.Context, items []recommend.Item) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	for i := range items {
		it := items[i]
		it.Embedding = vecmath.Clone(it.Embedding)
		s.items[it.ID] = it
	}
	record("upsert_items", start, nil)
	return nil
}

func (s *Store) GetRating(ctx context.Context, userID string, itemID int64) (recommend.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[ratingKey{userID, itemID}]
	if !ok {
		return recommend.Rating{}, recommend.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpsertRating(ctx context.Context, r recommend.Rating) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.ratings[ratingKey{r.UserID, r.ItemID}] = r
	set, ok := s.byUser[r.UserID]
	if !ok {
		set = make(map[int64]struct{})
		s.byUser[r.UserID] = set
	}
	set[r.ItemID] = struct{}{}
	record("upsert_rating", start, nil)
	return nil
}

func (s *Store) DeleteRating(ctx context.Context, userID string, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ratingKey{userID, itemID}
	if _, ok := s.ratings[key]; !ok {
		return recommend.ErrNotFound
	}
	delete(s.ratings, key)
	delete(s.byUser[userID], itemID)
	if len(s.byUser[userID]) == 0 {
		delete(s.byUser, userID)
	}
	return nil
}

func (s *Store) CountRatings(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID]), nil
}

func (s *Store) ListRatings(ctx context.Context, userID string) ([]recommend.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recommend.Rating, 0, len(s.byUser[userID]))
	for itemID := range s.byUser[userID] {
		out = append(out, s.ratings[ratingKey{userID, itemID}])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (s *Store) ItemEmbedding(ctx context.Context, itemID int64) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemID]
	if !ok || len(it.Embedding) == 0 {
		return nil, recommend.ErrNotFound
	}
	return vecmath.Clone(it.Embedding), nil
}

func (s *Store) ItemEmbeddings(ctx context.Context, itemIDs []int64) (map[int64][]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]float64, len(itemIDs))
	for _, id := range itemIDs {
		if it, ok := s.items[id]; ok && len(it.Embedding) > 0 {
			out[id] = vecmath.Clone(it.Embedding)
		}
	}
	return out, nil
}

func (s *Store) UserEmbedding(ctx context.Context, userID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.userVecs[userID]
	if !ok {
		return nil, recommend.ErrNotFound
	}
	return vecmath.Clone(v), nil
}

func (s *Store) SetUserEmbedding(ctx context.Context, userID string, vec []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.userVecs[userID] = vecmath.Clone(vec)
	return nil
}

func (s *Store) DeleteUserEmbedding(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userVecs, userID)
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, e recommend.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the event log.
func (s *Store) Events() []recommend.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]recommend.Event, len(s.events))
	copy(out, s.events)
	return out
}

// NearestToCentroids scans every item per centroid. Results are ordered by
// distance ascending, then item ID ascending.
func (s *Store) NearestToCentroids(ctx context.Context, q recommend.CandidateQuery) ([][]recommend.Candidate, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	exclude := make(map[int64]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		exclude[id] = struct{}{}
	}

	out := make([][]recommend.Candidate, len(q.Centroids))
	for ci, centroid := range q.Centroids {
		if err := ctx.Err(); err != nil {
			record("nearest_to_centroids", start, err)
			return nil, err
		}
		list, err := s.scan(centroid, q.Limit, q.IncludeInactive, exclude)
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemID]
	if !ok || len(it.Embedding) == 0 {
		return nil, recommend.ErrNotFound
	}
	return s.scan(it.Embedding, limit, includeInactive, map[int64]struct{}{itemID: {}})
}

func (s *Store) scan(query []float64, limit int, includeInactive bool, exclude map[int64]struct{}) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return []recommend.Candidate{}, nil
	}
	found := make([]recommend.Candidate, 0, len(s.items))
	for id, it := range s.items {
		if _, skip := exclude[id]; skip {
			continue
		}
		if len(it.Embedding) == 0 || (!it.Active && !includeInactive) {
			continue
		}
		d, err := vecmath.CosineDistance(query, it.Embedding)
		if err != nil {
			return nil, err
		}
		found = append(found, recommend.Candidate{
			ItemID:    id,
			ItemInfo:  it.ItemInfo,
			Embedding: vecmath.Clone(it.Embedding),
			Distance:  d,
		})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Distance != found[j].Distance {
			return found[i].Distance < found[j].Distance
		}
		return found[i].ItemID < found[j].ItemID
	})
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}
