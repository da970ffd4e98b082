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
	"github.com/tomtom215/tastemap/internal/recommend/vecmath"
)

// DefaultLookAhead is the intra-cluster diversity window.
const DefaultLookAhead = 5

// cancelCheckInterval is how many selections run between context checks.
const cancelCheckInterval = 256

// Diverse implements multi-level diversity ranking.
//
// Each round every cluster with remaining items gets a draw weight
//
//	weight = mean(score of next topK items) * exp(-lambda * draws)
//
// and one cluster is drawn with the seeded generator. The first draw from a
// cluster takes its best item. Later draws scan the next LookAhead items and
// penalize those whose cosine similarity to the cluster's previous pick
// exceeds threshold:
//
//	adjusted = score * (1 - beta * (similarity - threshold))
//
// The window item with the highest adjusted score is taken and moved to the
// cluster's pointer slot, so skipped items stay eligible for later rounds.
type Diverse struct {
	params    recommend.RankingParams
	lookAhead int
}

// NewDiverse creates a diverse ranker. Params are range-checked.
//
//nolint:gocritic // hugeParam: params copied once at construction
func NewDiverse(params recommend.RankingParams, lookAhead int) (*Diverse, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if lookAhead < 1 {
		lookAhead = DefaultLookAhead
	}
	return &Diverse{params: params, lookAhead: lookAhead}, nil
}

// Name returns the ranker identifier.
func (d *Diverse) Name() string {
	return recommend.StrategyDiverse
}

// clusterState is the per-cluster bookkeeping of the selection loop.
type clusterState struct {
	pointer int
	draws   int
	last    *recommend.RankedCandidate
}

// Rank produces the complete diverse ordering.
func (d *Diverse) Rank(ctx context.Context, clusters [][]recommend.Candidate, seed string) ([]recommend.RankedCandidate, error) {
	ranked := scoreClusters(clusters, d.params.Alpha)
	total := countRanked(ranked)
	if total == 0 {
		return []recommend.RankedCandidate{}, nil
	}

	rng := NewSeededRandom(seed)
	states := make([]clusterState, len(ranked))
	order := make([]recommend.RankedCandidate, 0, total)

	active := make([]int, 0, len(ranked))
	weights := make([]float64, 0, len(ranked))

	for len(order) < total {
		if len(order)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		active = active[:0]
		weights = weights[:0]
		for ci := range ranked {
			st := &states[ci]
			if st.pointer >= len(ranked[ci]) {
				continue
			}
			active = append(active, ci)
			weights = append(weights, d.drawWeight(ranked[ci], st))
		}
		if len(active) == 0 {
			break
		}

		ci := active[weightedPick(weights, rng)]
		st := &states[ci]
		items := ranked[ci]

		pick := st.pointer
		if st.last != nil {
			var err error
			pick, err = d.selectInWindow(items, st)
			if err != nil {
				return nil, fmt.Errorf("cluster %d: %w", ci, err)
			}
		}

		// Rotate the pick into the pointer slot so skipped items remain.
		selected := items[pick]
		copy(items[st.pointer+1:pick+1], items[st.pointer:pick])
		items[st.pointer] = selected

		order = append(order, selected)
		st.last = &items[st.pointer]
		st.pointer++
		st.draws++
	}

	return order, nil
}

func (d *Diverse) drawWeight(items []recommend.RankedCandidate, st *clusterState) float64 {
	end := st.pointer + d.params.TopK
	if end > len(items) {
		end = len(items)
	}
	sum := 0.0
	for i := st.pointer; i < end; i++ {
		sum += items[i].Score
	}
	avg := sum / float64(end-st.pointer)
	return avg * math.Exp(-d.params.Lambda*float64(st.draws))
}

// selectInWindow returns the index of the best adjusted score in the
// look-ahead window. Ties keep the earlier item.
func (d *Diverse) selectInWindow(items []recommend.RankedCandidate, st *clusterState) (int, error) {
	end := st.pointer + d.lookAhead
	if end > len(items) {
		end = len(items)
	}

	best := st.pointer
	bestScore := math.Inf(-1)
	for i := st.pointer; i < end; i++ {
		adjusted := items[i].Score
		if len(items[i].Embedding) > 0 && len(st.last.Embedding) > 0 {
			sim, err := vecmath.CosineSimilarity(items[i].Embedding, st.last.Embedding)
			if err != nil {
				return 0, fmt.Errorf("item %d: %w", items[i].ItemID, err)
			}
			if sim > d.params.Threshold {
				adjusted *= 1 - d.params.Beta*(sim-d.params.Threshold)
			}
		}
		if adjusted > bestScore {
			bestScore = adjusted
			best = i
		}
	}
	return best, nil
}

var _ Ranker = (*Diverse)(nil)
