// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package api

import (
	"net/http"

	"github.com/tomtom215/tastemap/internal/logging"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/embedding"
)

// RatingResult is the payload of rate and unrate responses.
type RatingResult struct {
	UserID           string            `json:"user_id"`
	ItemID           int64             `json:"item_id"`
	Rating           *float64          `json:"rating,omitempty"`
	Previous         *recommend.Rating `json:"previous,omitempty"`
	EmbeddingUpdated bool              `json:"embedding_updated"`
	EmbeddingDeleted bool              `json:"embedding_deleted,omitempty"`
}

func newRatingResult(userID string, itemID int64, rating *float64, res *embedding.Result) RatingResult {
	out := RatingResult{
		UserID: userID,
		ItemID: itemID,
		Rating: rating,
	}
	if res != nil {
		out.Previous = res.Previous
		out.EmbeddingUpdated = res.EmbeddingUpdated
		out.EmbeddingDeleted = res.EmbeddingDeleted
	}
	return out
}

// RatingList is the payload of GET /users/{userID}/ratings.
type RatingList struct {
	UserID  string             `json:"user_id"`
	Ratings []recommend.Rating `json:"ratings"`
	Count   int                `json:"count"`
}

// RebuildResult is the payload of POST /users/{userID}/embedding/rebuild.
type RebuildResult struct {
	UserID  string `json:"user_id"`
	Ratings int    `json:"ratings"`
}

// Rate handles PUT /api/v1/users/{userID}/ratings/{itemID}.
// Creating or changing a rating updates the user vector incrementally.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	path, err := parseRatingPath(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if !validate(w, r, &path) {
		return
	}

	var req RateRequest
	if err := decodeBody(w, r, &req); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if !validate(w, r, &req) {
		return
	}

	ctx := logging.ContextWithUserID(r.Context(), path.UserID)
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.engine.Rate(ctx, path.UserID, path.ItemID, req.Rating)
	if err != nil {
		writeError(w, r.WithContext(ctx), "rate", err)
		return
	}
	WriteSuccess(w, r, newRatingResult(path.UserID, path.ItemID, &req.Rating, res))
}

// Unrate handles DELETE /api/v1/users/{userID}/ratings/{itemID}.
// Deleting a rating that does not exist is a 404.
func (h *Handler) Unrate(w http.ResponseWriter, r *http.Request) {
	path, err := parseRatingPath(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if !validate(w, r, &path) {
		return
	}

	ctx := logging.ContextWithUserID(r.Context(), path.UserID)
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	res, err := h.engine.Unrate(ctx, path.UserID, path.ItemID)
	if err != nil {
		writeError(w, r.WithContext(ctx), "unrate", err)
		return
	}
	WriteSuccess(w, r, newRatingResult(path.UserID, path.ItemID, nil, res))
}

// ListRatings handles GET /api/v1/users/{userID}/ratings.
func (h *Handler) ListRatings(w http.ResponseWriter, r *http.Request) {
	path := parseUserPath(r)
	if !validate(w, r, &path) {
		return
	}

	ctx, cancel := h.withTimeout(logging.ContextWithUserID(r.Context(), path.UserID))
	defer cancel()

	ratings, err := h.engine.ListRatings(ctx, path.UserID)
	if err != nil {
		writeError(w, r.WithContext(ctx), "list_ratings", err)
		return
	}
	if ratings == nil {
		ratings = []recommend.Rating{}
	}
	WriteSuccess(w, r, RatingList{UserID: path.UserID, Ratings: ratings, Count: len(ratings)})
}

// RebuildEmbedding handles POST /api/v1/users/{userID}/embedding/rebuild.
// The user vector is recomputed from every stored rating.
func (h *Handler) RebuildEmbedding(w http.ResponseWriter, r *http.Request) {
	path := parseUserPath(r)
	if !validate(w, r, &path) {
		return
	}

	ctx, cancel := h.withTimeout(logging.ContextWithUserID(r.Context(), path.UserID))
	defer cancel()

	n, err := h.engine.RebuildUserEmbedding(ctx, path.UserID)
	if err != nil {
		writeError(w, r.WithContext(ctx), "rebuild_embedding", err)
		return
	}
	logging.Ctx(ctx).Info().Int("ratings", n).Msg("User embedding rebuilt")
	WriteSuccess(w, r, RebuildResult{UserID: path.UserID, Ratings: n})
}
