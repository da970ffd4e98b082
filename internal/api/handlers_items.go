// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package api

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/tastemap/internal/logging"
)

// UpsertResult is the payload of POST /items.
type UpsertResult struct {
	Upserted int `json:"upserted"`
}

// UpsertItems handles POST /api/v1/items.
// Items are inserted or replaced together with their embeddings.
func (h *Handler) UpsertItems(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemsRequest
	if err := decodeBody(w, r, &req); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if !validate(w, r, &req) {
		return
	}
	if len(req.Items) > h.maxItems {
		NewResponseWriter(w, r).BadRequest(fmt.Sprintf("at most %d items per request, got %d", h.maxItems, len(req.Items)))
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.engine.UpsertItems(ctx, req.toItems()); err != nil {
		writeError(w, r.WithContext(ctx), "upsert_items", err)
		return
	}
	logging.Ctx(ctx).Info().Int("items", len(req.Items)).Msg("Catalog items upserted")
	NewResponseWriter(w, r).Created(UpsertResult{Upserted: len(req.Items)})
}
