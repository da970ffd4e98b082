// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/validation"
)

// maxBodyBytes bounds request bodies. A bulk upsert of 1000 items with
// 103-dimensional embeddings is roughly 2 MiB.
const maxBodyBytes = 8 << 20

// userPath holds the {userID} path parameter.
type userPath struct {
	UserID string `json:"user_id" validate:"user_id"`
}

// ratingPath holds the {userID}/{itemID} path parameters.
type ratingPath struct {
	UserID string `json:"user_id" validate:"user_id"`
	ItemID int64  `json:"item_id" validate:"gt=0"`
}

// RateRequest is the PUT /users/{userID}/ratings/{itemID} body.
type RateRequest struct {
	Rating float64 `json:"rating" validate:"required,half_step"`
}

// RecommendQuery holds GET /users/{userID}/recommendations parameters.
// Ranking parameters left unset keep the configured values.
type RecommendQuery struct {
	Offset          int      `query:"offset" validate:"gte=0"`
	Count           int      `query:"count" validate:"gte=0"`
	IncludeInactive bool     `query:"include_inactive"`
	Strategy        string   `query:"strategy" validate:"omitempty,oneof=diverse round_robin mmr"`
	Alpha           *float64 `query:"alpha" validate:"omitempty,gte=0,lte=1"`
	Lambda          *float64 `query:"lambda" validate:"omitempty,gte=0.1,lte=0.5"`
	Beta            *float64 `query:"beta" validate:"omitempty,gte=0.2,lte=0.8"`
	Threshold       *float64 `query:"threshold" validate:"omitempty,gte=0.5,lte=0.8"`
	TopK            *int     `query:"top_k" validate:"omitempty,gte=3,lte=10"`
}

// hasParams reports whether any ranking parameter was supplied.
func (q *RecommendQuery) hasParams() bool {
	return q.Alpha != nil || q.Lambda != nil || q.Beta != nil || q.Threshold != nil || q.TopK != nil
}

// applyParams overlays the supplied ranking parameters on base.
func (q *RecommendQuery) applyParams(base recommend.RankingParams) *recommend.RankingParams {
	p := base
	if q.Alpha != nil {
		p.Alpha = *q.Alpha
	}
	if q.Lambda != nil {
		p.Lambda = *q.Lambda
	}
	if q.Beta != nil {
		p.Beta = *q.Beta
	}
	if q.Threshold != nil {
		p.Threshold = *q.Threshold
	}
	if q.TopK != nil {
		p.TopK = *q.TopK
	}
	return &p
}

// SimilarQuery holds GET /items/{itemID}/similar parameters.
type SimilarQuery struct {
	Limit           int  `query:"limit" validate:"gte=0"`
	IncludeInactive bool `query:"include_inactive"`
}

// ItemRequest is one catalog entry in a POST /items body.
type ItemRequest struct {
	ID         int64     `json:"id" validate:"gt=0"`
	Name       string    `json:"name" validate:"required,max=256"`
	Category   string    `json:"category" validate:"max=128"`
	Producer   string    `json:"producer" validate:"max=256"`
	Active     *bool     `json:"active"`
	Bias       float64   `json:"bias"`
	Popularity int       `json:"popularity" validate:"gte=0"`
	Embedding  []float64 `json:"embedding" validate:"required,min=1"`
}

// UpsertItemsRequest is the POST /items body.
type UpsertItemsRequest struct {
	Items []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// toItems converts the request into catalog items. Items are active unless
// the request says otherwise.
func (req *UpsertItemsRequest) toItems() []recommend.Item {
	items := make([]recommend.Item, len(req.Items))
	for i := range req.Items {
		in := &req.Items[i]
		active := true
		if in.Active != nil {
			active = *in.Active
		}
		items[i] = recommend.Item{
			ID: in.ID,
			ItemInfo: recommend.ItemInfo{
				Name:       in.Name,
				Category:   in.Category,
				Producer:   in.Producer,
				Active:     active,
				Bias:       in.Bias,
				Popularity: in.Popularity,
			},
			Embedding: in.Embedding,
		}
	}
	return items
}

// paramError is a malformed path or query value.
type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.name, e.value)
}

func parseUserPath(r *http.Request) userPath {
	return userPath{UserID: chi.URLParam(r, "userID")}
}

func parseRatingPath(r *http.Request) (ratingPath, error) {
	itemID, err := parseItemID(r)
	if err != nil {
		return ratingPath{}, err
	}
	return ratingPath{UserID: chi.URLParam(r, "userID"), ItemID: itemID}, nil
}

func parseItemID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "itemID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &paramError{name: "item_id", value: raw}
	}
	return id, nil
}

func parseRecommendQuery(q url.Values) (RecommendQuery, error) {
	var out RecommendQuery
	var err error
	if out.Offset, err = queryInt(q, "offset", 0); err != nil {
		return out, err
	}
	if out.Count, err = queryInt(q, "count", 0); err != nil {
		return out, err
	}
	if out.IncludeInactive, err = queryBool(q, "include_inactive"); err != nil {
		return out, err
	}
	out.Strategy = q.Get("strategy")
	if out.Alpha, err = queryFloatPtr(q, "alpha"); err != nil {
		return out, err
	}
	if out.Lambda, err = queryFloatPtr(q, "lambda"); err != nil {
		return out, err
	}
	if out.Beta, err = queryFloatPtr(q, "beta"); err != nil {
		return out, err
	}
	if out.Threshold, err = queryFloatPtr(q, "threshold"); err != nil {
		return out, err
	}
	if raw := q.Get("top_k"); raw != "" {
		v, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return out, &paramError{name: "top_k", value: raw}
		}
		out.TopK = &v
	}
	return out, nil
}

func parseSimilarQuery(q url.Values) (SimilarQuery, error) {
	var out SimilarQuery
	var err error
	if out.Limit, err = queryInt(q, "limit", 0); err != nil {
		return out, err
	}
	if out.IncludeInactive, err = queryBool(q, "include_inactive"); err != nil {
		return out, err
	}
	return out, nil
}

func queryInt(q url.Values, key string, def int) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{name: key, value: raw}
	}
	return v, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &paramError{name: key, value: raw}
	}
	return v, nil
}

func queryFloatPtr(q url.Values, key string) (*float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &paramError{name: key, value: raw}
	}
	return &v, nil
}

// decodeBody reads a JSON body into dst, rejecting unknown fields and
// trailing data.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid request body: trailing data")
	}
	return nil
}

// validate runs struct validation and writes a 400 on failure.
func validate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if verr := validation.ValidateStruct(v); verr != nil {
		apiErr := verr.ToAPIError()
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
