// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/adaptive"
	"github.com/tomtom215/tastemap/internal/recommend/cache"
	"github.com/tomtom215/tastemap/internal/recommend/clustering"
	"github.com/tomtom215/tastemap/internal/recommend/reranking"
)

// Request describes one recommendation page.
type Request struct {
	UserID string

	// Offset and Count select the page. Count <= 0 means the default page size.
	Offset int
	Count  int

	// IncludeInactive admits retired items. Such requests bypass the cache.
	IncludeInactive bool

	// Strategy and Params override the configured ranking when set.
	Strategy string
	Params   *recommend.RankingParams
}

// Response is one ranked page plus how it was produced.
type Response struct {
	UserID         string                      `json:"user_id"`
	Items          []recommend.RankedCandidate `json:"items"`
	Offset         int                         `json:"offset"`
	Count          int                         `json:"count"`
	HasMore        bool                        `json:"has_more"`
	TotalAvailable int                         `json:"total_available"`

	K           int                   `json:"k"`
	Fallback    bool                  `json:"fallback"`
	CacheHit    bool                  `json:"cache_hit"`
	Strategy    string                `json:"strategy"`
	Evaluations []adaptive.Evaluation `json:"evaluations,omitempty"`
}

// Recommend runs the full pipeline for req.
//
// The same rated set, parameters and catalog always produce the same order:
// clustering is seeded from the sorted rated IDs and ranking from the user
// and those IDs.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := e.now()

	offset, count, err := e.page(req)
	if err != nil {
		return nil, err
	}
	ranker, err := e.rankerFor(req)
	if err != nil {
		return nil, err
	}

	gen := e.gens.current(req.UserID)
	ratings, err := e.store.ListRatings(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	if len(ratings) < e.cfg.MinRatings {
		return nil, fmt.Errorf("%w: have %d, need %d", recommend.ErrNotEnoughRatings, len(ratings), e.cfg.MinRatings)
	}

	ratedIDs := recommend.SortedItemIDs(ratings)
	items, err := e.ratedItems(ctx, req.UserID, ratings, ratedIDs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no rated item has an embedding", recommend.ErrNotEnoughRatings)
	}

	seed := recommend.SeedString(req.UserID, ratedIDs)
	required := e.requiredK(len(items))
	useCache := !req.IncludeInactive
	key := cache.NewKey(req.UserID, ratedIDs, e.cfg.KValues, e.cfg.CandidatesPerCluster, required)

	var (
		plans    []adaptive.Plan
		source   adaptive.Source
		cacheHit bool
	)
	if useCache {
		if entry, ok := e.cache.Get(ctx, key); ok {
			if plans, source, err = e.fromCache(ctx, entry, required); err == nil {
				cacheHit = true
			} else {
				e.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("Discarding unusable cache entry")
			}
		}
	}
	if !cacheHit {
		plans, err = e.selector.Plan(items)
		if err != nil {
			return nil, fmt.Errorf("failed to cluster rated items: %w", err)
		}
		fetched, complete, err := e.prefetch(ctx, plans, ratedIDs, req.IncludeInactive)
		if err != nil {
			return nil, err
		}
		source = fetched
		if useCache && complete {
			e.storeCache(ctx, req.UserID, gen, key, plans, fetched)
		}
	}

	selected, err := e.selector.Select(ctx, plans, source)
	if err != nil {
		return nil, fmt.Errorf("failed to select cluster count: %w", err)
	}

	order, err := ranker.Rank(ctx, selected.Candidates, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to rank candidates: %w", err)
	}
	page := reranking.Paginate(order, offset, count)
	for i := range page.Items {
		page.Items[i].Embedding = nil
	}

	metrics.RecordRecommendation(ranker.Name(), cacheHit, selected.K, selected.Fallback, len(order), e.now().Sub(start))
	e.logger.Debug().
		Str("user_id", recommend.UserOrAnonymous(req.UserID)).
		Int("ratings", len(ratings)).
		Int("k", selected.K).
		Bool("fallback", selected.Fallback).
		Bool("cache_hit", cacheHit).
		Int("candidates", len(order)).
		Str("k_values", cache.KString(e.cfg.KValues)).
		Dur("duration", e.now().Sub(start)).
		Msg("Recommendation computed")

	return &Response{
		UserID:         req.UserID,
		Items:          page.Items,
		Offset:         page.Offset,
		Count:          page.Count,
		HasMore:        page.HasMore,
		TotalAvailable: page.TotalAvailable,
		K:              selected.K,
		Fallback:       selected.Fallback,
		CacheHit:       cacheHit,
		Strategy:       ranker.Name(),
		Evaluations:    selected.Evaluations,
	}, nil
}

func (e *Engine) page(req Request) (offset, count int, err error) {
	if req.Offset < 0 {
		return 0, 0, fmt.Errorf("%w: offset must be non-negative, got %d", recommend.ErrInvalidParams, req.Offset)
	}
	count = req.Count
	if count <= 0 {
		count = e.cfg.DefaultPageSize
	}
	if count > e.cfg.MaxPageSize {
		count = e.cfg.MaxPageSize
	}
	return req.Offset, count, nil
}

func (e *Engine) rankerFor(req Request) (reranking.Ranker, error) {
	if req.Strategy == "" && req.Params == nil {
		return e.ranker, nil
	}
	rc := e.cfg.Ranking
	if req.Strategy != "" {
		rc.Strategy = req.Strategy
	}
	if req.Params != nil {
		if err := req.Params.Validate(); err != nil {
			return nil, err
		}
		rc.Params = *req.Params
	}
	return reranking.New(rc)
}

// ratedItems pairs ratings with embeddings in item ID order. Ratings
// without an embedding are skipped.
func (e *Engine) ratedItems(ctx context.Context, userID string, ratings []recommend.Rating, ids []int64) ([]recommend.RatedItem, error) {
	embeddings, err := e.store.ItemEmbeddings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load rated item embeddings: %w", err)
	}

	byID := make(map[int64]float64, len(ratings))
	for _, r := range ratings {
		byID[r.ItemID] = r.Rating
	}

	items := make([]recommend.RatedItem, 0, len(ids))
	var missing []int64
	for _, id := range ids {
		vec, ok := embeddings[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		items = append(items, recommend.RatedItem{ItemID: id, Embedding: vec, Rating: byID[id]})
	}
	if len(missing) > 0 {
		e.logger.Warn().
			Str("user_id", userID).
			Str("item_ids", recommend.JoinIDs(missing)).
			Msg("Rated items without embeddings excluded from clustering")
	}
	return items, nil
}

// requiredK lists the k values a complete pass evaluates for n rated items.
func (e *Engine) requiredK(n int) []int {
	required := []int{1}
	for _, k := range e.cfg.KValues {
		if k > n {
			break
		}
		if k != 1 {
			required = append(required, k)
		}
	}
	return required
}

// prefetched holds candidate lists per k gathered ahead of selection.
type prefetched struct {
	lists map[int][][]recommend.Candidate
	errs  map[int]error
}

func (p *prefetched) Fetch(ctx context.Context, plan adaptive.Plan) ([][]recommend.Candidate, error) {
	if err := p.errs[plan.K]; err != nil {
		return nil, err
	}
	lists, ok := p.lists[plan.K]
	if !ok {
		return nil, fmt.Errorf("no candidates fetched for k=%d", plan.K)
	}
	return lists, nil
}

// prefetch fetches candidates for every plan concurrently. A failed k is
// recorded and only matters if the selector reaches it. complete reports
// whether every k succeeded.
func (e *Engine) prefetch(ctx context.Context, plans []adaptive.Plan, exclude []int64, includeInactive bool) (*prefetched, bool, error) {
	out := &prefetched{
		lists: make(map[int][][]recommend.Candidate, len(plans)),
		errs:  make(map[int]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.FetchConcurrency)
	for _, plan := range plans {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, e.cfg.FetchTimeout)
			defer cancel()

			lists, err := e.retriever.NearestToCentroids(fctx, recommend.CandidateQuery{
				Centroids:       plan.Clusters.Centroids,
				Limit:           e.cfg.CandidatesPerCluster,
				IncludeInactive: includeInactive,
				ExcludeIDs:      exclude,
			})
			if err == nil && len(lists) != plan.Clusters.K() {
				err = fmt.Errorf("retriever returned %d lists for %d centroids", len(lists), plan.Clusters.K())
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.RecordCandidateFetchError(plan.K)
				e.logger.Warn().Err(err).Int("k", plan.K).Msg("Candidate fetch failed")
				out.errs[plan.K] = err
				return nil
			}
			out.lists[plan.K] = assignNearest(lists)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return out, len(out.errs) == 0, nil
}

// assignNearest keeps each item only in the cluster whose centroid it is
// closest to. Ties go to the lower cluster index. List order is preserved.
func assignNearest(lists [][]recommend.Candidate) [][]recommend.Candidate {
	type home struct {
		cluster  int
		distance float64
	}
	best := make(map[int64]home)
	for ci, list := range lists {
		for _, c := range list {
			h, seen := best[c.ItemID]
			if !seen || c.Distance < h.distance {
				best[c.ItemID] = home{cluster: ci, distance: c.Distance}
			}
		}
	}

	out := make([][]recommend.Candidate, len(lists))
	for ci, list := range lists {
		kept := make([]recommend.Candidate, 0, len(list))
		for _, c := range list {
			if best[c.ItemID].cluster != ci {
				continue
			}
			// An item listed twice under one centroid keeps its first entry.
			if len(kept) > 0 && containsItem(kept, c.ItemID) {
				continue
			}
			c.Cluster = ci
			kept = append(kept, c)
		}
		out[ci] = kept
	}
	return out
}

func containsItem(list []recommend.Candidate, id int64) bool {
	for i := range list {
		if list[i].ItemID == id {
			return true
		}
	}
	return false
}

// storeCache writes the entry unless userID's ratings changed since gen was
// read. A change that lands between the check and the write is caught by the
// second check, or by the invalidation that follows it.
func (e *Engine) storeCache(ctx context.Context, userID string, gen uint64, key cache.Key, plans []adaptive.Plan, fetched *prefetched) {
	if e.gens.current(userID) != gen {
		e.logger.Debug().Str("user_id", key.UserID).Msg("Ratings changed during computation, result not cached")
		return
	}
	entry := &cache.Entry{
		CreatedAt: e.now().UTC(),
		Plans:     make(map[int]*cache.Plan, len(plans)),
	}
	for _, p := range plans {
		entry.Plans[p.K] = &cache.Plan{Centroids: p.Clusters.Centroids, Candidates: fetched.lists[p.K]}
	}
	if err := e.cache.Set(ctx, key, entry); err != nil {
		ev := e.logger.Warn()
		if errors.Is(err, cache.ErrEntryTooLarge) {
			ev = e.logger.Debug()
		}
		ev.Err(err).Str("user_id", key.UserID).Msg("Recommendation not cached")
		return
	}
	if e.gens.current(userID) != gen {
		if err := e.cache.Invalidate(ctx, userID); err != nil {
			e.logger.Warn().Err(err).Str("user_id", key.UserID).Msg("Failed to drop superseded cache entry")
		}
	}
}

// cachedSource serves candidates from a cache entry.
type cachedSource struct {
	entry *cache.Entry
}

func (s cachedSource) Fetch(ctx context.Context, plan adaptive.Plan) ([][]recommend.Candidate, error) {
	p, ok := s.entry.Plans[plan.K]
	if !ok {
		return nil, fmt.Errorf("cache entry has no k=%d", plan.K)
	}
	return p.Candidates, nil
}

var errCacheIncomplete = errors.New("cache entry incomplete")

// fromCache rebuilds plans from a cache entry and rehydrates candidate
// embeddings from the store.
func (e *Engine) fromCache(ctx context.Context, entry *cache.Entry, required []int) ([]adaptive.Plan, adaptive.Source, error) {
	embeddings, err := e.store.ItemEmbeddings(ctx, entry.CandidateIDs())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rehydrate embeddings: %w", err)
	}
	if dropped := entry.Rehydrate(embeddings); dropped > 0 {
		e.logger.Debug().Int("dropped", dropped).Msg("Cached candidates without embeddings dropped")
	}

	plans := make([]adaptive.Plan, 0, len(required))
	for _, k := range required {
		p, ok := entry.Plans[k]
		if !ok || p == nil {
			return nil, nil, fmt.Errorf("%w: missing k=%d", errCacheIncomplete, k)
		}
		plans = append(plans, adaptive.Plan{K: k, Clusters: &clustering.Result{Centroids: p.Centroids}})
	}
	return plans, cachedSource{entry: entry}, nil
}
