// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package api

import (
	"net/http"

	"github.com/tomtom215/tastemap/internal/logging"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/adaptive"
	"github.com/tomtom215/tastemap/internal/recommend/engine"
)

// RecommendationPage is the payload of GET /users/{userID}/recommendations.
// Pagination is reported in meta.pagination.
type RecommendationPage struct {
	UserID      string                      `json:"user_id"`
	Items       []recommend.RankedCandidate `json:"items"`
	K           int                         `json:"k"`
	Fallback    bool                        `json:"fallback"`
	CacheHit    bool                        `json:"cache_hit"`
	Strategy    string                      `json:"strategy"`
	Evaluations []adaptive.Evaluation       `json:"evaluations,omitempty"`
}

// SimilarItems is the payload of GET /items/{itemID}/similar.
type SimilarItems struct {
	ItemID int64                 `json:"item_id"`
	Items  []recommend.Candidate `json:"items"`
	Count  int                   `json:"count"`
}

// Recommendations handles GET /api/v1/users/{userID}/recommendations.
//
// Query parameters:
//   - offset, count: page window over the ranked list
//   - include_inactive: include retired items (bypasses the cache)
//   - strategy: diverse, round_robin or mmr
//   - alpha, lambda, beta, threshold, top_k: ranking parameter overrides
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	path := parseUserPath(r)
	if !validate(w, r, &path) {
		return
	}
	q, err := parseRecommendQuery(r.URL.Query())
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if !validate(w, r, &q) {
		return
	}

	req := engine.Request{
		UserID:          path.UserID,
		Offset:          q.Offset,
		Count:           q.Count,
		IncludeInactive: q.IncludeInactive,
		Strategy:        q.Strategy,
	}
	if q.hasParams() {
		req.Params = q.applyParams(h.engine.Config().Ranking.Params)
	}

	ctx, cancel := h.withTimeout(logging.ContextWithUserID(r.Context(), path.UserID))
	defer cancel()

	resp, err := h.engine.Recommend(ctx, req)
	if err != nil {
		writeError(w, r.WithContext(ctx), "recommend", err)
		return
	}

	items := resp.Items
	if items == nil {
		items = []recommend.RankedCandidate{}
	}
	limit := q.Count
	if limit == 0 {
		limit = resp.Count
	}
	NewResponseWriter(w, r).SuccessWithPagination(RecommendationPage{
		UserID:      resp.UserID,
		Items:       items,
		K:           resp.K,
		Fallback:    resp.Fallback,
		CacheHit:    resp.CacheHit,
		Strategy:    resp.Strategy,
		Evaluations: resp.Evaluations,
	}, &PaginationMeta{
		Offset:         resp.Offset,
		Count:          resp.Count,
		Limit:          limit,
		HasMore:        resp.HasMore,
		TotalAvailable: resp.TotalAvailable,
	})
}

// Similar handles GET /api/v1/items/{itemID}/similar.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	itemID, err := parseItemID(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if itemID <= 0 {
		NewResponseWriter(w, r).BadRequest("item_id must be greater than 0")
		return
	}
	q, err := parseSimilarQuery(r.URL.Query())
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if !validate(w, r, &q) {
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	items, err := h.engine.Similar(ctx, itemID, q.Limit, q.IncludeInactive)
	if err != nil {
		writeError(w, r.WithContext(ctx), "similar", err)
		return
	}
	if items == nil {
		items = []recommend.Candidate{}
	}
	WriteSuccess(w, r, SimilarItems{ItemID: itemID, Items: items, Count: len(items)})
}
