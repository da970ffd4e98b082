// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package adaptive

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/clustering"
)

func ratedItems(n int) []recommend.RatedItem {
	items := make([]recommend.RatedItem, n)
	for i := range items {
		angle := float64(i) * math.Pi / float64(2*n)
		items[i] = recommend.RatedItem{
			ItemID:    int64(i + 1),
			Embedding: []float64{math.Cos(angle), math.Sin(angle)},
			Rating:    4,
		}
	}
	return items
}

func testConfig() Config {
	return Config{
		KValues:             []int{1, 2, 5, 7, 10, 15},
		MinItemsPerCluster:  10,
		SimilarityThreshold: 0.65,
		MinTotal:            30,
		Clustering:          clustering.DefaultOptions(),
	}
}

// mockSource returns perCluster[k] candidates at distance dist[k] for every
// cluster, or errs[k] when set.
type mockSource struct {
	mu         sync.Mutex
	perCluster map[int]int
	dist       map[int]float64
	errs       map[int]error
	lists      map[int]int
	calls      map[int]int
}

func (m *mockSource) Fetch(ctx context.Context, plan Plan) ([][]recommend.Candidate, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[int]int)
	}
	m.calls[plan.K]++
	m.mu.Unlock()

	if err := m.errs[plan.K]; err != nil {
		return nil, err
	}
	lists := plan.Clusters.K()
	if n, ok := m.lists[plan.K]; ok {
		lists = n
	}
	out := make([][]recommend.Candidate, lists)
	id := int64(1000)
	for ci := range out {
		for j := 0; j < m.perCluster[plan.K]; j++ {
			out[ci] = append(out[ci], recommend.Candidate{ItemID: id, Distance: m.dist[plan.K], Cluster: ci})
			id++
		}
	}
	return out, nil
}

func uniformSource(perCluster int, dist float64) *mockSource {
	m := &mockSource{perCluster: map[int]int{}, dist: map[int]float64{}}
	for _, k := range []int{1, 2, 5, 7, 10, 15} {
		m.perCluster[k] = perCluster
		m.dist[k] = dist
	}
	return m
}

func TestSelector_PicksLargestValidPrefix(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinTotal = 10
	src := uniformSource(12, 0.1)
	src.perCluster[7] = 2

	res, err := NewSelector(cfg).Run(context.Background(), ratedItems(20), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.K != 5 || res.Fallback {
		t.Errorf("K = %d, Fallback = %v; want 5, false", res.K, res.Fallback)
	}
	if len(res.Candidates) != 5 {
		t.Errorf("got %d candidate lists, want 5", len(res.Candidates))
	}
	if len(res.Evaluations) != 4 {
		t.Fatalf("evaluations = %+v, want 4 (k=1,2,5,7)", res.Evaluations)
	}
	if last := res.Evaluations[3]; last.K != 7 || last.Valid {
		t.Errorf("last evaluation = %+v", last)
	}
	if src.calls[10] != 0 {
		t.Error("search continued past the first invalid k")
	}
}

func TestSelector_FallbackIgnoresThreshold(t *testing.T) {
	t.Parallel()

	// Twelve candidates per cluster, all below the similarity threshold.
	src := uniformSource(12, 0.6)

	res, err := NewSelector(testConfig()).Run(context.Background(), ratedItems(20), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Fallback || res.K != 1 {
		t.Fatalf("K = %d, Fallback = %v; want 1, true", res.K, res.Fallback)
	}
	if len(res.Candidates) != 1 || len(res.Candidates[0]) != 12 {
		t.Errorf("fallback candidates should be unfiltered, got %d lists", len(res.Candidates))
	}
	if src.calls[1] != 1 {
		t.Errorf("k=1 fetched %d times, want 1", src.calls[1])
	}
}

func TestSelector_BelowMinTotal(t *testing.T) {
	t.Parallel()

	// k=1 is valid per cluster but 12 < MinTotal 30.
	src := uniformSource(12, 0.1)
	res, err := NewSelector(testConfig()).Run(context.Background(), ratedItems(20), src)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback {
		t.Errorf("Fallback = false, want true (total below minimum)")
	}
	if ev := res.Evaluations[0]; !ev.Valid || ev.Total != 12 {
		t.Errorf("evaluation = %+v", ev)
	}
}

func TestSelector_ThresholdBoundaryInclusive(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinTotal = 0
	cfg.SimilarityThreshold = 0.5
	src := uniformSource(10, 0.5)

	res, err := NewSelector(cfg).Run(context.Background(), ratedItems(3), src)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback || res.K != 2 {
		t.Errorf("K = %d, Fallback = %v; want 2, false", res.K, res.Fallback)
	}
}

func TestSelector_SkipsKAboveItemCount(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinTotal = 10
	src := uniformSource(10, 0)

	res, err := NewSelector(cfg).Run(context.Background(), ratedItems(6), src)
	if err != nil {
		t.Fatal(err)
	}
	if res.K != 5 {
		t.Errorf("K = %d, want 5", res.K)
	}
	if src.calls[7] != 0 || src.calls[10] != 0 {
		t.Error("evaluated k larger than the number of rated items")
	}
}

func TestSelector_FetchErrorStopsSearch(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinTotal = 10
	src := uniformSource(10, 0)
	src.errs = map[int]error{2: errors.New("store unavailable")}

	res, err := NewSelector(cfg).Run(context.Background(), ratedItems(20), src)
	if err != nil {
		t.Fatal(err)
	}
	if res.K != 1 || res.Fallback {
		t.Errorf("K = %d, Fallback = %v; want 1, false", res.K, res.Fallback)
	}
	if ev := res.Evaluations[len(res.Evaluations)-1]; ev.K != 2 || ev.Err == nil {
		t.Errorf("last evaluation = %+v", ev)
	}
}

func TestSelector_WrongListCountIsFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinTotal = 10
	src := uniformSource(10, 0)
	src.lists = map[int]int{2: 1}

	res, err := NewSelector(cfg).Run(context.Background(), ratedItems(20), src)
	if err != nil {
		t.Fatal(err)
	}
	if res.K != 1 {
		t.Errorf("K = %d, want 1", res.K)
	}
}

func TestSelector_FallbackFetchFails(t *testing.T) {
	t.Parallel()

	src := uniformSource(10, 0)
	src.errs = map[int]error{1: errors.New("boom")}

	if _, err := NewSelector(testConfig()).Run(context.Background(), ratedItems(20), src); err == nil {
		t.Error("expected error when the fallback fetch fails")
	}
}

func TestSelector_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSelector(testConfig()).Run(ctx, ratedItems(20), uniformSource(12, 0.1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSelector_NoItems(t *testing.T) {
	t.Parallel()

	_, err := NewSelector(testConfig()).Run(context.Background(), nil, uniformSource(12, 0.1))
	if !errors.Is(err, clustering.ErrNoItems) {
		t.Errorf("err = %v, want ErrNoItems", err)
	}
}

func TestPlan_AlwaysIncludesK1(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.KValues = []int{5, 2}
	plans, err := NewSelector(cfg).Plan(ratedItems(8))
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 5}
	if len(plans) != len(want) {
		t.Fatalf("got %d plans, want %d", len(plans), len(want))
	}
	for i, p := range plans {
		if p.K != want[i] || p.Clusters.K() != want[i] {
			t.Errorf("plan %d: K = %d, clusters = %d, want %d", i, p.K, p.Clusters.K(), want[i])
		}
	}
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := recommend.DefaultConfig()
	got := ConfigFrom(cfg)
	if got.MinTotal != 30 || got.MinItemsPerCluster != 10 || got.SimilarityThreshold != 0.65 {
		t.Errorf("ConfigFrom = %+v", got)
	}
	got.KValues[0] = 99
	if cfg.KValues[0] == 99 {
		t.Error("ConfigFrom shares KValues with the source config")
	}
}
