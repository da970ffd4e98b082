// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package reranking turns per-cluster candidate lists into one complete,
// deterministic ordering that pagination slices without recomputation.
//
// # Overview
//
// Candidates arrive grouped by cluster index, each tagged with its cosine
// distance to the cluster centroid and a quality bias. A Ranker produces the
// full order; Paginate cuts pages out of it:
//
//	Adaptive K -> candidates by cluster -> Ranker -> full order -> Paginate
//
// # Available Rankers
//
// Diverse (default):
//   - Inter-cluster diversity: each round a cluster is drawn at random with a
//     weight that decays exponentially with the number of draws already taken
//   - Intra-cluster diversity: near-duplicates of the cluster's previous pick
//     are penalized inside a short look-ahead window
//   - Quality: the bias term is blended in, dampened by alpha
//
// RoundRobin:
//   - Drains the clusters in index order, one item per cluster per round
//
// MMR:
//   - Maximal Marginal Relevance over candidate embeddings
//
// # Scoring
//
// All rankers share one score:
//
//	score = (1 - distance/2) * (1 + max(0, bias)^alpha)
//
// Distance in [0, 2] maps to a similarity score in [1, 0]; a small alpha
// keeps similarity dominant.
//
// # Determinism
//
// The diverse ranker draws from a mulberry32 generator seeded by hashing the
// seed string (user + sorted rated item IDs). Identical seed, candidates and
// parameters reproduce a bit-identical order across calls and restarts.
//
// # Thread Safety
//
// Rankers hold only immutable parameters and are safe for concurrent use.
package reranking
