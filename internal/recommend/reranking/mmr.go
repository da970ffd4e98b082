// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import (
	"context"
	"strings"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/vecmath"
)

// maxRerankSize bounds the quadratic similarity matrix.
const maxRerankSize = 5000

// MMR implements Maximal Marginal Relevance over all clusters at once.
// It iteratively selects the item that maximizes
//
//	lambda * score(i) - (1-lambda) * max(sim(i, s)) for s in selected
//
// where sim is the cosine similarity of candidate embeddings, falling back
// to category equality when an embedding is missing. Clusters only matter
// through the candidates' scores.
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	lambda float64
	alpha  float64
}

// NewMMR creates a new MMR ranker. lambda is clamped to [0, 1].
func NewMMR(lambda, alpha float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda, alpha: alpha}
}

// Name returns the ranker identifier.
func (m *MMR) Name() string {
	return recommend.StrategyMMR
}

// Rank applies MMR to the flattened candidate list. Beyond maxRerankSize
// items the tail keeps its score order.
func (m *MMR) Rank(ctx context.Context, clusters [][]recommend.Candidate, _ string) ([]recommend.RankedCandidate, error) {
	items := flattenByScore(scoreClusters(clusters, m.alpha))
	if len(items) == 0 {
		return items, nil
	}

	head := items
	var tail []recommend.RankedCandidate
	if len(items) > maxRerankSize {
		head, tail = items[:maxRerankSize], items[maxRerankSize:]
	}

	// Pure relevance needs no similarity work
	if m.lambda >= 1.0 {
		return items, nil
	}

	similarities := buildSimilarityMatrix(head)

	selected := make([]recommend.RankedCandidate, 0, len(items))
	taken := make([]bool, len(head))
	maxSim := make([]float64, len(head))

	for len(selected) < len(head) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bestIdx := -1
		bestMMR := 0.0
		for i := range head {
			if taken[i] {
				continue
			}
			score := m.lambda*head[i].Score - (1-m.lambda)*maxSim[i]
			if bestIdx < 0 || score > bestMMR {
				bestMMR = score
				bestIdx = i
			}
		}

		taken[bestIdx] = true
		selected = append(selected, head[bestIdx])
		for i := range head {
			if s := similarities[i][bestIdx]; s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}

	return append(selected, tail...), nil
}

// flattenByScore merges clusters into one list in descending score order,
// ties by item ID.
func flattenByScore(clusters [][]recommend.RankedCandidate) []recommend.RankedCandidate {
	out := make([]recommend.RankedCandidate, 0, countRanked(clusters))
	for _, c := range clusters {
		out = append(out, c...)
	}
	sortRanked(out)
	return out
}

// buildSimilarityMatrix computes pairwise candidate similarity.
func buildSimilarityMatrix(items []recommend.RankedCandidate) [][]float64 {
	n := len(items)
	similarities := make([][]float64, n)
	for i := range similarities {
		similarities[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := candidateSimilarity(&items[i].Candidate, &items[j].Candidate)
			similarities[i][j] = sim
			similarities[j][i] = sim
		}
	}

	return similarities
}

func candidateSimilarity(a, b *recommend.Candidate) float64 {
	if len(a.Embedding) > 0 && len(a.Embedding) == len(b.Embedding) {
		sim, err := vecmath.CosineSimilarity(a.Embedding, b.Embedding)
		if err == nil {
			return sim
		}
	}
	if a.Category != "" && strings.EqualFold(a.Category, b.Category) {
		return 1
	}
	return 0
}

var _ Ranker = (*MMR)(nil)
