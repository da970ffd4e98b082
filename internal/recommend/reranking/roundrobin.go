// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import (
	"context"

	"github.com/tomtom215/tastemap/internal/recommend"
)

// RoundRobin interleaves clusters in index order, one item per cluster per
// round, each cluster in descending score order. Exhausted clusters are
// skipped.
type RoundRobin struct {
	alpha float64
}

// NewRoundRobin creates a round-robin ranker scoring with alpha.
func NewRoundRobin(alpha float64) *RoundRobin {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &RoundRobin{alpha: alpha}
}

// Name returns the ranker identifier.
func (r *RoundRobin) Name() string {
	return recommend.StrategyRoundRobin
}

// Rank interleaves the clusters.
func (r *RoundRobin) Rank(ctx context.Context, clusters [][]recommend.Candidate, _ string) ([]recommend.RankedCandidate, error) {
	ranked := scoreClusters(clusters, r.alpha)
	order := make([]recommend.RankedCandidate, 0, countRanked(ranked))

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		took := false
		for ci := range ranked {
			if round < len(ranked[ci]) {
				order = append(order, ranked[ci][round])
				took = true
			}
		}
		if !took {
			break
		}
	}

	return order, nil
}

var _ Ranker = (*RoundRobin)(nil)
