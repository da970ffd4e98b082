// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package adaptive chooses how many taste clusters to recommend from.
//
// The selector walks the configured k values in ascending order. For each k
// it clusters the user's rated items, asks a Source for candidates per
// cluster, and keeps only candidates whose similarity to their centroid meets
// the threshold. A k is acceptable when every cluster keeps at least
// MinItemsPerCluster candidates and the clusters together keep at least
// MinTotal. The search stops at the first unacceptable k; the last
// acceptable one wins. When none is acceptable the result falls back to a
// single cluster with no threshold applied.
package adaptive

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/clustering"
)

// Source supplies candidates for every cluster of a plan. The returned slice
// must have one list per centroid, in centroid order.
type Source interface {
	Fetch(ctx context.Context, plan Plan) ([][]recommend.Candidate, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, plan Plan) ([][]recommend.Candidate, error)

func (f SourceFunc) Fetch(ctx context.Context, plan Plan) ([][]recommend.Candidate, error) {
	return f(ctx, plan)
}

// Plan is the clustering of the rated items for one k.
type Plan struct {
	K        int
	Clusters *clustering.Result
}

// Evaluation records how one k fared.
type Evaluation struct {
	K      int   `json:"k"`
	Counts []int `json:"counts,omitempty"`
	Total  int   `json:"total"`
	Valid  bool  `json:"valid"`
	Err    error `json:"-"`
}

// Result is the selected clustering with its candidates.
type Result struct {
	K        int
	Clusters *clustering.Result

	// Candidates holds one list per cluster. Lists are threshold-filtered
	// unless Fallback is set.
	Candidates [][]recommend.Candidate

	Fallback    bool
	Evaluations []Evaluation
}

// Config holds the acceptance thresholds.
type Config struct {
	KValues             []int
	MinItemsPerCluster  int
	SimilarityThreshold float64
	MinTotal            int
	Clustering          clustering.Options
}

// ConfigFrom extracts selector settings from the engine configuration.
func ConfigFrom(cfg *recommend.Config) Config {
	return Config{
		KValues:             append([]int(nil), cfg.KValues...),
		MinItemsPerCluster:  cfg.MinItemsPerCluster,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MinTotal:            cfg.MinTotalRecommendations,
		Clustering:          clustering.OptionsFromConfig(cfg.Clustering),
	}
}

// Selector runs the adaptive k search.
type Selector struct {
	cfg Config
}

func NewSelector(cfg Config) *Selector {
	ks := append([]int(nil), cfg.KValues...)
	sort.Ints(ks)
	cfg.KValues = ks
	return &Selector{cfg: cfg}
}

// Plan clusters items for every configured k that does not exceed the
// number of items. The k=1 plan needed by the fallback is always included.
func (s *Selector) Plan(items []recommend.RatedItem) ([]Plan, error) {
	if len(items) == 0 {
		return nil, clustering.ErrNoItems
	}

	plans := make([]Plan, 0, len(s.cfg.KValues)+1)
	seen := make(map[int]bool, len(s.cfg.KValues)+1)
	add := func(k int) error {
		if seen[k] {
			return nil
		}
		seen[k] = true
		res, err := clustering.Cluster(items, k, s.cfg.Clustering)
		if err != nil {
			return fmt.Errorf("cluster k=%d: %w", k, err)
		}
		plans = append(plans, Plan{K: k, Clusters: res})
		return nil
	}

	if err := add(1); err != nil {
		return nil, err
	}
	for _, k := range s.cfg.KValues {
		if k > len(items) {
			break
		}
		if err := add(k); err != nil {
			return nil, err
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].K < plans[j].K })
	return plans, nil
}

// Select evaluates the plans in ascending k and returns the chosen result.
func (s *Selector) Select(ctx context.Context, plans []Plan, src Source) (*Result, error) {
	byK := make(map[int]Plan, len(plans))
	for _, p := range plans {
		byK[p.K] = p
	}

	var (
		best        *Result
		evaluations []Evaluation
		fetched     = make(map[int][][]recommend.Candidate)
	)

	for _, k := range s.cfg.KValues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plan, ok := byK[k]
		if !ok {
			// Plans stop at the number of rated items.
			break
		}

		ev := Evaluation{K: k}
		candidates, err := src.Fetch(ctx, plan)
		if err == nil && len(candidates) != plan.Clusters.K() {
			err = fmt.Errorf("source returned %d lists for %d clusters", len(candidates), plan.Clusters.K())
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			ev.Err = err
			evaluations = append(evaluations, ev)
			break
		}
		fetched[k] = candidates

		filtered := s.filter(candidates)
		ev.Counts = make([]int, len(filtered))
		ev.Valid = true
		for i, list := range filtered {
			ev.Counts[i] = len(list)
			ev.Total += len(list)
			if len(list) < s.cfg.MinItemsPerCluster {
				ev.Valid = false
			}
		}
		evaluations = append(evaluations, ev)

		if !ev.Valid || ev.Total < s.cfg.MinTotal {
			break
		}
		best = &Result{K: k, Clusters: plan.Clusters, Candidates: filtered}
	}

	if best != nil {
		best.Evaluations = evaluations
		return best, nil
	}

	plan, ok := byK[1]
	if !ok {
		return nil, fmt.Errorf("no k=1 plan for fallback")
	}
	candidates, ok := fetched[1]
	if !ok {
		var err error
		candidates, err = src.Fetch(ctx, plan)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("fallback fetch: %w", err)
		}
	}
	return &Result{
		K:           1,
		Clusters:    plan.Clusters,
		Candidates:  candidates,
		Fallback:    true,
		Evaluations: evaluations,
	}, nil
}

// Run plans and selects in one call.
func (s *Selector) Run(ctx context.Context, items []recommend.RatedItem, src Source) (*Result, error) {
	plans, err := s.Plan(items)
	if err != nil {
		return nil, err
	}
	return s.Select(ctx, plans, src)
}

func (s *Selector) filter(lists [][]recommend.Candidate) [][]recommend.Candidate {
	out := make([][]recommend.Candidate, len(lists))
	for i, list := range lists {
		kept := make([]recommend.Candidate, 0, len(list))
		for _, c := range list {
			if c.Similarity() >= s.cfg.SimilarityThreshold {
				kept = append(kept, c)
			}
		}
		out[i] = kept
	}
	return out
}
