// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import (
	"context"
	"testing"

	"github.com/tomtom215/tastemap/internal/recommend"
)

func TestNewMMR(t *testing.T) {
	tests := []struct {
		name       string
		lambda     float64
		wantLambda float64
	}{
		{"normal value", 0.7, 0.7},
		{"zero value", 0.0, 0.0},
		{"one value", 1.0, 1.0},
		{"negative clamped to zero", -0.5, 0.0},
		{"above one clamped to one", 1.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mmr := NewMMR(tt.lambda, 0.1)
			if mmr.lambda != tt.wantLambda {
				t.Errorf("lambda = %f, want %f", mmr.lambda, tt.wantLambda)
			}
		})
	}
}

func mmrFixture() [][]recommend.Candidate {
	return [][]recommend.Candidate{
		{
			{ItemID: 1, Embedding: []float64{1, 0}, Distance: 0},
			{ItemID: 2, Embedding: []float64{1, 0}, Distance: 0.1},
		},
		{
			{ItemID: 3, Embedding: []float64{0, 1}, Distance: 0.2},
		},
	}
}

func TestMMR_PureRelevance(t *testing.T) {
	t.Parallel()

	order, err := NewMMR(1.0, 0.1).Rank(context.Background(), mmrFixture(), "")
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 2, 3}
	got := itemIDs(order)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMMR_DiversityEffect(t *testing.T) {
	t.Parallel()

	// Item 2 duplicates item 1: 0.5*0.95 - 0.5*1 < 0.5*0.9 for item 3.
	order, err := NewMMR(0.5, 0.1).Rank(context.Background(), mmrFixture(), "")
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 3, 2}
	got := itemIDs(order)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMMR_EmptyInput(t *testing.T) {
	t.Parallel()

	order, err := NewMMR(0.7, 0.1).Rank(context.Background(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 0 {
		t.Errorf("len(order) = %d, want 0", len(order))
	}
}

func TestCandidateSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b recommend.Candidate
		want float64
	}{
		{
			"embeddings",
			recommend.Candidate{Embedding: []float64{1, 0}},
			recommend.Candidate{Embedding: []float64{1, 0}},
			1,
		},
		{
			"category fallback",
			recommend.Candidate{ItemInfo: recommend.ItemInfo{Category: "IPA"}},
			recommend.Candidate{ItemInfo: recommend.ItemInfo{Category: "ipa"}},
			1,
		},
		{
			"different categories",
			recommend.Candidate{ItemInfo: recommend.ItemInfo{Category: "IPA"}},
			recommend.Candidate{ItemInfo: recommend.ItemInfo{Category: "Stout"}},
			0,
		},
		{"nothing to compare", recommend.Candidate{}, recommend.Candidate{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := candidateSimilarity(&tt.a, &tt.b); got != tt.want {
				t.Errorf("candidateSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
