// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import "unicode/utf16"

// SeededRandom is a deterministic generator driven by a string seed.
//
// The seed is hashed over its UTF-16 code units with h = h*31 + c in
// 32-bit two's complement; the absolute value (1 when zero) becomes the
// mulberry32 state. Each Next advances the state by 0x6d2b79f5 and mixes it.
type SeededRandom struct {
	state uint32
}

// NewSeededRandom creates a generator for seed.
func NewSeededRandom(seed string) *SeededRandom {
	return &SeededRandom{state: HashSeed(seed)}
}

// HashSeed maps a seed string to a non-zero generator state.
func HashSeed(seed string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(seed)) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		// Negating MinInt32 wraps to itself; the uint32 conversion below
		// still yields 2^31, the true absolute value.
		h = -h
	}
	state := uint32(h)
	if state == 0 {
		state = 1
	}
	return state
}

// Next returns a value in [0, 1).
func (r *SeededRandom) Next() float64 {
	r.state += 0x6d2b79f5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// weightedPick returns an index drawn proportionally to weights.
// A non-positive total picks index 0.
func weightedPick(weights []float64, rng *SeededRandom) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}

	r := rng.Next() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i
		}
	}
	return len(weights) - 1
}
