// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import (
	"testing"

	"github.com/tomtom215/tastemap/internal/recommend"
)

func TestHashSeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		seed string
		want uint32
	}{
		{"", 1},
		{"a", 97},
		{"ab", 97*31 + 98},
	}

	for _, tt := range tests {
		if got := HashSeed(tt.seed); got != tt.want {
			t.Errorf("HashSeed(%q) = %d, want %d", tt.seed, got, tt.want)
		}
	}

	// Long seeds overflow int32 and must still land on a positive state.
	if HashSeed("user-with-a-very-long-identifier:1,2,3,4,5,6,7,8,9,10") == 0 {
		t.Error("HashSeed returned zero")
	}
}

func TestSeededRandom_Deterministic(t *testing.T) {
	t.Parallel()

	seed := recommend.SeedString("u1", []int64{3, 5, 8})
	a := NewSeededRandom(seed)
	b := NewSeededRandom(seed)
	for i := 0; i < 1000; i++ {
		x, y := a.Next(), b.Next()
		if x != y {
			t.Fatalf("step %d: %v != %v", i, x, y)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("step %d: %v out of [0, 1)", i, x)
		}
	}
}

func TestSeededRandom_SeedsDiverge(t *testing.T) {
	t.Parallel()

	a := NewSeededRandom("anonymous:1,2")
	b := NewSeededRandom("anonymous:1,3")
	same := 0
	for i := 0; i < 100; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	if same == 100 {
		t.Error("different seeds produced identical streams")
	}
}

func TestWeightedPick(t *testing.T) {
	t.Parallel()

	rng := NewSeededRandom("pick")

	if got := weightedPick([]float64{0, 0}, rng); got != 0 {
		t.Errorf("zero total picked %d, want 0", got)
	}
	if got := weightedPick([]float64{-1, -2}, rng); got != 0 {
		t.Errorf("negative total picked %d, want 0", got)
	}
	for i := 0; i < 100; i++ {
		if got := weightedPick([]float64{0, 0, 1}, rng); got != 2 {
			t.Fatalf("only positive weight at 2, picked %d", got)
		}
	}

	counts := make([]int, 2)
	for i := 0; i < 10000; i++ {
		counts[weightedPick([]float64{1, 3}, rng)]++
	}
	if counts[1] < 2*counts[0] {
		t.Errorf("weights 1:3 produced counts %v", counts)
	}
}
