// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package api

import (
	"context"
	"time"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/embedding"
	"github.com/tomtom215/tastemap/internal/recommend/engine"
)

// Recommender is the engine surface the handlers use.
// *engine.Engine satisfies it; tests substitute a mock.
type Recommender interface {
	Config() *recommend.Config
	Ping(ctx context.Context) error
	Rate(ctx context.Context, userID string, itemID int64, rating float64) (*embedding.Result, error)
	Unrate(ctx context.Context, userID string, itemID int64) (*embedding.Result, error)
	RebuildUserEmbedding(ctx context.Context, userID string) (int, error)
	ListRatings(ctx context.Context, userID string) ([]recommend.Rating, error)
	UpsertItems(ctx context.Context, items []recommend.Item) error
	Similar(ctx context.Context, itemID int64, limit int, includeInactive bool) ([]recommend.Candidate, error)
	Recommend(ctx context.Context, req engine.Request) (*engine.Response, error)
}

var _ Recommender = (*engine.Engine)(nil)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_health.go: liveness and readiness
//   - handlers_ratings.go: rate, unrate, list and rebuild
//   - handlers_recommend.go: recommendations and similar items
//   - handlers_items.go: catalog upserts
type Handler struct {
	engine    Recommender
	timeout   time.Duration
	maxItems  int
	startTime time.Time
}

// HandlerOptions tune request handling.
type HandlerOptions struct {
	// Timeout bounds each engine call. Zero disables the bound.
	Timeout time.Duration

	// MaxUpsertItems caps the number of items in one POST /items body.
	MaxUpsertItems int
}

// DefaultMaxUpsertItems is used when HandlerOptions.MaxUpsertItems is zero.
const DefaultMaxUpsertItems = 1000

// NewHandler creates the API handler.
func NewHandler(rec Recommender, opts HandlerOptions) *Handler {
	if opts.MaxUpsertItems <= 0 {
		opts.MaxUpsertItems = DefaultMaxUpsertItems
	}
	return &Handler{
		engine:    rec,
		timeout:   opts.Timeout,
		maxItems:  opts.MaxUpsertItems,
		startTime: time.Now(),
	}
}

// withTimeout bounds an engine call by the handler timeout.
func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}
