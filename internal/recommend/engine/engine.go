// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package engine wires the recommendation pipeline together: rating
// maintenance, adaptive clustering, candidate retrieval, caching, ranking
// and pagination.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/adaptive"
	"github.com/tomtom215/tastemap/internal/recommend/cache"
	"github.com/tomtom215/tastemap/internal/recommend/embedding"
	"github.com/tomtom215/tastemap/internal/recommend/reranking"
	"github.com/tomtom215/tastemap/internal/recommend/vecmath"
)

// Deps are the engine collaborators.
type Deps struct {
	// Store holds ratings, embeddings and events.
	Store recommend.Store

	// Retriever overrides Store for candidate retrieval, typically a
	// breaker-wrapped view of the same store. Optional.
	Retriever recommend.CandidateRetriever

	// Cache stores clusterings and candidates. Optional.
	Cache cache.Cache
}

// Engine serves rating and recommendation operations.
type Engine struct {
	cfg        *recommend.Config
	store      recommend.Store
	retriever  recommend.CandidateRetriever
	cache      cache.Cache
	maintainer *embedding.Maintainer
	selector   *adaptive.Selector
	ranker     reranking.Ranker
	logger     zerolog.Logger
	now        func() time.Time

	gens generations
}

// generationStripes is the number of rating-generation counters.
const generationStripes = 256

// generations counts rating changes per user stripe. A result computed
// while its user's counter moved is never cached. Users sharing a stripe
// also skip each other's cache writes.
type generations [generationStripes]atomic.Uint64

func (g *generations) current(userID string) uint64 {
	return g[recommend.UserStripe(userID, generationStripes)].Load()
}

func (g *generations) bump(userID string) {
	g[recommend.UserStripe(userID, generationStripes)].Add(1)
}

// New validates cfg and builds an engine.
func New(cfg *recommend.Config, deps Deps, logger *zerolog.Logger) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	ranker, err := reranking.New(cfg.Ranking)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	cfg = cfg.Clone()
	e := &Engine{
		cfg:        cfg,
		store:      deps.Store,
		retriever:  deps.Retriever,
		cache:      deps.Cache,
		maintainer: embedding.NewMaintainer(deps.Store, cfg.Dimension, logger),
		selector:   adaptive.NewSelector(adaptive.ConfigFrom(cfg)),
		ranker:     ranker,
		logger:     logger.With().Str("component", "engine").Logger(),
		now:        time.Now,
	}
	if e.retriever == nil {
		e.retriever = deps.Store
	}
	if e.cache == nil {
		e.cache = cache.Nop{}
	}
	return e, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *recommend.Config {
	return e.cfg.Clone()
}

// Ping checks the store.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Rate stores a rating, updates the user vector and drops cached
// recommendations for the user.
func (e *Engine) Rate(ctx context.Context, userID string, itemID int64, rating float64) (*embedding.Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", recommend.ErrInvalidParams)
	}
	res, err := e.maintainer.Rate(ctx, userID, itemID, rating)
	metrics.RecordRatingOperation("rate", err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, userID)
	return res, nil
}

// Unrate removes a rating. A missing rating yields recommend.ErrNotFound.
func (e *Engine) Unrate(ctx context.Context, userID string, itemID int64) (*embedding.Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", recommend.ErrInvalidParams)
	}
	res, err := e.maintainer.Unrate(ctx, userID, itemID)
	metrics.RecordRatingOperation("unrate", err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, userID)
	return res, nil
}

// RebuildUserEmbedding recomputes the user vector from all ratings and
// returns the number of ratings it was built from.
func (e *Engine) RebuildUserEmbedding(ctx context.Context, userID string) (int, error) {
	n, err := e.maintainer.Rebuild(ctx, userID)
	metrics.RecordRatingOperation("rebuild", err)
	if err != nil {
		return 0, err
	}
	e.invalidate(ctx, userID)
	return n, nil
}

// ListRatings returns the user's ratings ordered by item ID.
func (e *Engine) ListRatings(ctx context.Context, userID string) ([]recommend.Rating, error) {
	return e.store.ListRatings(ctx, userID)
}

// UpsertItems adds or replaces catalog items. Embeddings must match the
// configured dimension.
func (e *Engine) UpsertItems(ctx context.Context, items []recommend.Item) error {
	for i := range items {
		if n := len(items[i].Embedding); n > 0 && e.cfg.Dimension > 0 && n != e.cfg.Dimension {
			return fmt.Errorf("%w: item %d: %w: %d != %d",
				recommend.ErrInvalidParams, items[i].ID, vecmath.ErrDimensionMismatch, n, e.cfg.Dimension)
		}
	}
	return e.store.UpsertItems(ctx, items)
}

// Similar returns the items nearest to itemID's embedding.
func (e *Engine) Similar(ctx context.Context, itemID int64, limit int, includeInactive bool) ([]recommend.Candidate, error) {
	if limit <= 0 {
		limit = e.cfg.SimilarLimit
	}
	if limit > e.cfg.MaxPageSize {
		limit = e.cfg.MaxPageSize
	}
	items, err := e.retriever.SimilarItems(ctx, itemID, limit, includeInactive)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Embedding = nil
	}
	return items, nil
}

// invalidate must run after the rating write it follows.
func (e *Engine) invalidate(ctx context.Context, userID string) {
	e.gens.bump(userID)
	if err := e.cache.Invalidate(ctx, userID); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to invalidate cached recommendations")
	}
}

// IsClientError reports whether err stems from bad input rather than a
// failing dependency.
func IsClientError(err error) bool {
	return errors.Is(err, recommend.ErrInvalidParams) ||
		errors.Is(err, recommend.ErrInvalidRating) ||
		errors.Is(err, recommend.ErrNotEnoughRatings) ||
		errors.Is(err, recommend.ErrNotFound)
}
