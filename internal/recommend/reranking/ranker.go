// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import (
	"context"
	"fmt"
	"math"

	"github.com/tomtom215/tastemap/internal/recommend"
)

// Ranker orders per-cluster candidates into one complete list.
//
// clusters[i] holds the candidates of cluster i. The result contains every
// distinct candidate exactly once.
type Ranker interface {
	Name() string
	Rank(ctx context.Context, clusters [][]recommend.Candidate, seed string) ([]recommend.RankedCandidate, error)
}

// New returns the ranker named by cfg.Strategy.
//
//nolint:gocritic // hugeParam: config passed by value, read once at construction
func New(cfg recommend.RankingConfig) (Ranker, error) {
	switch cfg.Strategy {
	case "", recommend.StrategyDiverse:
		return NewDiverse(cfg.Params, cfg.LookAhead)
	case recommend.StrategyRoundRobin:
		return NewRoundRobin(cfg.Params.Alpha), nil
	case recommend.StrategyMMR:
		return NewMMR(cfg.MMRLambda, cfg.Params.Alpha), nil
	default:
		return nil, fmt.Errorf("%w: unknown ranking strategy %q", recommend.ErrInvalidParams, cfg.Strategy)
	}
}

// Score computes (1 - distance/2) * (1 + max(0, bias)^alpha).
func Score(distance, bias, alpha float64) float64 {
	similarityScore := 1 - distance/2
	biasFactor := math.Pow(math.Max(0, bias), alpha)
	return similarityScore * (1 + biasFactor)
}

// scoreClusters scores every candidate, drops repeated item IDs (first
// occurrence wins) and sorts each cluster by descending score, ties by ID.
func scoreClusters(clusters [][]recommend.Candidate, alpha float64) [][]recommend.RankedCandidate {
	seen := make(map[int64]struct{})
	out := make([][]recommend.RankedCandidate, len(clusters))

	for ci, cands := range clusters {
		ranked := make([]recommend.RankedCandidate, 0, len(cands))
		for i := range cands {
			if _, dup := seen[cands[i].ItemID]; dup {
				continue
			}
			seen[cands[i].ItemID] = struct{}{}

			c := cands[i]
			c.Cluster = ci
			ranked = append(ranked, recommend.RankedCandidate{
				Candidate: c,
				Score:     Score(c.Distance, c.Bias, alpha),
			})
		}
		sortRanked(ranked)
		out[ci] = ranked
	}

	return out
}

func countRanked(clusters [][]recommend.RankedCandidate) int {
	n := 0
	for _, c := range clusters {
		n += len(c)
	}
	return n
}
