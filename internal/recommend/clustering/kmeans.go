// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package clustering groups a user's rated items into taste clusters with a
// deterministic, rating-weighted k-means++ under cosine distance.
package clustering

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/vecmath"
)

var (
	// ErrNoItems is returned when clustering is requested for an empty item list.
	ErrNoItems = errors.New("no items provided for clustering")

	// ErrInvalidK is returned for k < 1.
	ErrInvalidK = errors.New("k must be positive")
)

// Options controls k-means iteration.
type Options struct {
	// MaxIterations caps assignment/update rounds.
	MaxIterations int

	// Tolerance stops iteration once the largest centroid shift,
	// measured as 1 - cos(old, new), falls below it.
	Tolerance float64
}

// DefaultOptions returns 100 iterations and a 1e-4 tolerance.
func DefaultOptions() Options {
	return Options{MaxIterations: 100, Tolerance: 1e-4}
}

// OptionsFromConfig extracts clustering options from the engine config.
func OptionsFromConfig(cfg recommend.ClusteringConfig) Options {
	return Options{MaxIterations: cfg.MaxIterations, Tolerance: cfg.Tolerance}
}

// Result is the outcome of one clustering run.
type Result struct {
	// Centroids holds one vector per cluster, len == effective k.
	Centroids [][]float64

	// Assignments is parallel to the input items.
	Assignments []int

	// Iterations is the number of assignment rounds executed.
	Iterations int
}

// K returns the effective number of clusters.
func (r *Result) K() int {
	return len(r.Centroids)
}

// Sizes returns the member count of every cluster.
func (r *Result) Sizes() []int {
	sizes := make([]int, len(r.Centroids))
	for _, a := range r.Assignments {
		sizes[a]++
	}
	return sizes
}

// Seed derives the PRNG seed from the item IDs in input order.
//
// The seed is order-dependent: callers pass items sorted by ID so that the
// same rated set always clusters the same way.
func Seed(items []recommend.RatedItem) uint32 {
	h := fnv.New32a()
	var buf [8]byte
	for i := range items {
		binary.BigEndian.PutUint64(buf[:], uint64(items[i].ItemID))
		_, _ = h.Write(buf[:])
	}
	seed := h.Sum32()
	if seed == 0 {
		seed = 1
	}
	return seed
}

// Cluster runs weighted k-means++ on items. k is clamped to len(items).
//
// Centroids are the rating-weighted mean of their members, using the raw
// rating as weight. A cluster that loses all members keeps its previous
// centroid. Identical input always yields identical output.
func Cluster(items []recommend.RatedItem, k int, opts Options) (*Result, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if k < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}
	if k > len(items) {
		k = len(items)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	dim := len(items[0].Embedding)
	for i := range items {
		if len(items[i].Embedding) != dim {
			return nil, fmt.Errorf("item %d: %w: %d != %d",
				items[i].ItemID, vecmath.ErrDimensionMismatch, len(items[i].Embedding), dim)
		}
	}

	rng := newMulberry32(Seed(items))
	centroids := initCentroids(items, k, rng)

	assignments := make([]int, len(items))
	for i := range assignments {
		assignments[i] = -1
	}

	iterations := 0
	for iterations < opts.MaxIterations {
		iterations++

		changed := false
		for i := range items {
			nearest := nearestCentroid(items[i].Embedding, centroids)
			if nearest != assignments[i] {
				assignments[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}

		next := updateCentroids(items, assignments, centroids, dim)

		maxShift := 0.0
		for c := range centroids {
			if shift := 1 - similarity(centroids[c], next[c]); shift > maxShift {
				maxShift = shift
			}
		}
		centroids = next

		if maxShift < opts.Tolerance {
			break
		}
	}

	return &Result{
		Centroids:   centroids,
		Assignments: assignments,
		Iterations:  iterations,
	}, nil
}

// initCentroids seeds centroids with k-means++: the first uniformly at
// random, each further one with probability proportional to the squared
// cosine distance to its nearest chosen centroid.
func initCentroids(items []recommend.RatedItem, k int, rng *mulberry32) [][]float64 {
	centroids := make([][]float64, 0, k)
	chosen := make([]bool, len(items))

	first := int(rng.Float64() * float64(len(items)))
	if first >= len(items) {
		first = len(items) - 1
	}
	centroids = append(centroids, vecmath.Clone(items[first].Embedding))
	chosen[first] = true

	sq := make([]float64, len(items))
	for len(centroids) < k {
		total := 0.0
		for i := range items {
			minDist := 2.0
			for _, c := range centroids {
				if d := 1 - similarity(items[i].Embedding, c); d < minDist {
					minDist = d
				}
			}
			if minDist < 0 {
				minDist = 0
			}
			sq[i] = minDist * minDist
			total += sq[i]
		}

		pick := -1
		if total > 0 {
			r := rng.Float64() * total
			for i := range items {
				if sq[i] == 0 {
					continue
				}
				pick = i
				r -= sq[i]
				if r <= 0 {
					break
				}
			}
		} else {
			// Every item coincides with a centroid; take the next unchosen one.
			for i := range items {
				if !chosen[i] {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			pick = 0
		}

		centroids = append(centroids, vecmath.Clone(items[pick].Embedding))
		chosen[pick] = true
	}

	return centroids
}

// nearestCentroid returns the index of maximum cosine similarity; ties go
// to the lowest index.
func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestSim := similarity(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if s := similarity(v, centroids[c]); s > bestSim {
			bestSim = s
			best = c
		}
	}
	return best
}

func updateCentroids(items []recommend.RatedItem, assignments []int, prev [][]float64, dim int) [][]float64 {
	sums := make([][]float64, len(prev))
	weights := make([]float64, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i := range items {
		c := assignments[i]
		w := items[i].Rating
		weights[c] += w
		for d, x := range items[i].Embedding {
			sums[c][d] += w * x
		}
	}

	next := make([][]float64, len(prev))
	for c := range next {
		if weights[c] <= 0 {
			next[c] = prev[c]
			continue
		}
		next[c] = vecmath.Scale(sums[c], 1/weights[c])
	}
	return next
}

// similarity is cosine similarity on vectors already checked for equal length.
func similarity(a, b []float64) float64 {
	s, err := vecmath.CosineSimilarity(a, b)
	if err != nil {
		return 0
	}
	return s
}
