// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastemap/internal/memstore"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/cache"
)

func testConfig() *recommend.Config {
	cfg := recommend.DefaultConfig()
	cfg.Dimension = 4
	cfg.KValues = []int{1, 2, 5}
	cfg.CandidatesPerCluster = 20
	cfg.MinItemsPerCluster = 3
	cfg.SimilarityThreshold = 0.5
	cfg.MinTotalRecommendations = 5
	return cfg
}

// catalog builds three groups of 30 items pointing along different axes.
func catalog() []recommend.Item {
	var items []recommend.Item
	for g := 0; g < 3; g++ {
		for i := 0; i < 30; i++ {
			emb := []float64{0, 0, 0, 0.01 * float64(i)}
			emb[g] = 1
			items = append(items, recommend.Item{
				ID: int64(g*100 + i + 1),
				ItemInfo: recommend.ItemInfo{
					Name:   "item",
					Active: i%10 != 9,
					Bias:   0.5,
				},
				Embedding: emb,
			})
		}
	}
	return items
}

type fixture struct {
	engine  *Engine
	store   *memstore.Store
	backend *cache.MemoryBackend
}

func newFixture(t *testing.T, deps Deps) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	if err := store.UpsertItems(ctx, catalog()); err != nil {
		t.Fatal(err)
	}
	backend := cache.NewMemoryBackend()
	logger := zerolog.Nop()

	deps.Store = store
	if deps.Cache == nil {
		deps.Cache = cache.New(backend, cache.DefaultOptions(), &logger)
	}
	eng, err := New(testConfig(), deps, &logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{engine: eng, store: store, backend: backend}
}

func (f *fixture) rateDefaults(t *testing.T, user string) {
	t.Helper()
	ratings := map[int64]float64{1: 4.5, 2: 5, 101: 4.5, 102: 4, 201: 3.5, 202: 2}
	for id, r := range ratings {
		if _, err := f.engine.Rate(context.Background(), user, id, r); err != nil {
			t.Fatalf("Rate(%d): %v", id, err)
		}
	}
}

func ids(items []recommend.RankedCandidate) []int64 {
	out := make([]int64, len(items))
	for i := range items {
		out[i] = items[i].ItemID
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()

	if _, err := New(testConfig(), Deps{}, &logger); err == nil {
		t.Error("expected error without store")
	}

	cfg := testConfig()
	cfg.KValues = nil
	if _, err := New(cfg, Deps{Store: memstore.New()}, &logger); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestRecommend_NotEnoughRatings(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3, 4} {
		if _, err := f.engine.Rate(ctx, "u", id, 4); err != nil {
			t.Fatal(err)
		}
	}
	_, err := f.engine.Recommend(ctx, Request{UserID: "u"})
	if !errors.Is(err, recommend.ErrNotEnoughRatings) {
		t.Errorf("err = %v, want ErrNotEnoughRatings", err)
	}
}

func TestRecommend_CompleteAndExcludesRated(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.rateDefaults(t, "u")

	resp, err := f.engine.Recommend(context.Background(), Request{UserID: "u", Count: 100})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.K < 1 || len(resp.Items) == 0 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.TotalAvailable != len(resp.Items) || resp.HasMore {
		t.Errorf("TotalAvailable = %d, items = %d, HasMore = %v", resp.TotalAvailable, len(resp.Items), resp.HasMore)
	}

	rated := map[int64]bool{1: true, 2: true, 101: true, 102: true, 201: true, 202: true}
	seen := make(map[int64]bool)
	for _, it := range resp.Items {
		if rated[it.ItemID] {
			t.Errorf("rated item %d recommended", it.ItemID)
		}
		if seen[it.ItemID] {
			t.Errorf("item %d recommended twice", it.ItemID)
		}
		seen[it.ItemID] = true
		if !it.Active {
			t.Errorf("inactive item %d recommended", it.ItemID)
		}
		if it.Embedding != nil {
			t.Errorf("item %d carries its embedding", it.ItemID)
		}
	}
}

func TestRecommend_DeterministicAndCached(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.rateDefaults(t, "u")
	ctx := context.Background()

	first, err := f.engine.Recommend(ctx, Request{UserID: "u", Count: 50})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first call reported a cache hit")
	}
	second, err := f.engine.Recommend(ctx, Request{UserID: "u", Count: 50})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second call missed the cache")
	}

	a, b := ids(first.Items), ids(second.Items)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order differs at %d: %v vs %v", i, a, b)
		}
	}
	if first.K != second.K || first.Fallback != second.Fallback {
		t.Errorf("selection differs: k %d/%d fallback %v/%v", first.K, second.K, first.Fallback, second.Fallback)
	}
}

func TestRecommend_PaginationLaw(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.rateDefaults(t, "u")
	ctx := context.Background()

	full, err := f.engine.Recommend(ctx, Request{UserID: "u", Count: 100})
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := f.engine.Recommend(ctx, Request{UserID: "u", Offset: 0, Count: 5})
	p2, _ := f.engine.Recommend(ctx, Request{UserID: "u", Offset: 5, Count: 5})

	joined := append(ids(p1.Items), ids(p2.Items)...)
	want := ids(full.Items)[:10]
	for i := range want {
		if joined[i] != want[i] {
			t.Fatalf("page concat %v != full prefix %v", joined, want)
		}
	}
	if !p1.HasMore {
		t.Error("first page HasMore = false")
	}
}

func TestRecommend_RatingInvalidatesCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.rateDefaults(t, "u")
	ctx := context.Background()

	if _, err := f.engine.Recommend(ctx, Request{UserID: "u"}); err != nil {
		t.Fatal(err)
	}
	if f.backend.Len() == 0 {
		t.Fatal("nothing cached")
	}
	if _, err := f.engine.Rate(ctx, "u", 3, 5); err != nil {
		t.Fatal(err)
	}
	if f.backend.Len() != 0 {
		t.Error("rating did not invalidate the cache")
	}

	resp, err := f.engine.Recommend(ctx, Request{UserID: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.CacheHit {
		t.Error("stale cache entry served after rating")
	}
	for _, it := range resp.Items {
		if it.ItemID == 3 {
			t.Error("newly rated item recommended")
		}
	}
}

func TestRecommend_IncludeInactiveBypassesCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.rateDefaults(t, "u")
	ctx := context.Background()

	resp, err := f.engine.Recommend(ctx, Request{UserID: "u", Count: 100, IncludeInactive: true})
	if err != nil {
		t.Fatal(err)
	}
	if f.backend.Len() != 0 {
		t.Error("include_inactive result was cached")
	}
	inactive := 0
	for _, it := range resp.Items {
		if !it.Active {
			inactive++
		}
	}
	if inactive == 0 {
		t.Error("no inactive items despite IncludeInactive")
	}
}

func TestRecommend_StrategyOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.rateDefaults(t, "u")
	ctx := context.Background()

	resp, err := f.engine.Recommend(ctx, Request{UserID: "u", Strategy: recommend.StrategyRoundRobin})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Strategy != "round_robin" {
		t.Errorf("Strategy = %q", resp.Strategy)
	}

	bad := recommend.DefaultRankingParams()
	bad.TopK = 50
	if _, err := f.engine.Recommend(ctx, Request{UserID: "u", Params: &bad}); !errors.Is(err, recommend.ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
	if _, err := f.engine.Recommend(ctx, Request{UserID: "u", Offset: -1}); !errors.Is(err, recommend.ErrInvalidParams) {
		t.Errorf("negative offset: err = %v, want ErrInvalidParams", err)
	}
}

// gatedRetriever holds every candidate fetch until release is closed.
type gatedRetriever struct {
	inner   recommend.CandidateRetriever
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRetriever() *gatedRetriever {
	return &gatedRetriever{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRetriever) NearestToCentroids(ctx context.Context, q recommend.CandidateQuery) ([][]recommend.Candidate, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.inner.NearestToCentroids(ctx, q)
}

func (g *gatedRetriever) SimilarItems(ctx context.Context, itemID int64, limit int, includeInactive bool) ([]recommend.Candidate, error) {
	return g.inner.SimilarItems(ctx, itemID, limit, includeInactive)
}

func TestRecommend_ReRateDuringComputationIsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	gate := newGatedRetriever()
	f := newFixture(t, Deps{Retriever: gate})
	gate.inner = f.store
	f.rateDefaults(t, "u")

	errCh := make(chan error, 1)
	go func() {
		_, err := f.engine.Recommend(ctx, Request{UserID: "u", Count: 50})
		errCh <- err
	}()
	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("Recommend never reached candidate retrieval")
	}

	// Same rated set, different ratings: the cache key does not change.
	changed := map[int64]float64{1: 0.5, 2: 0.5, 101: 0.5, 102: 0.5, 202: 5}
	for id, r := range changed {
		if _, err := f.engine.Rate(ctx, "u", id, r); err != nil {
			t.Fatalf("Rate(%d): %v", id, err)
		}
	}
	close(gate.release)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("in-flight Recommend: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight Recommend did not return")
	}
	if n := f.backend.Len(); n != 0 {
		t.Fatalf("superseded result cached: %d entries", n)
	}

	got, err := f.engine.Recommend(ctx, Request{UserID: "u", Count: 50})
	if err != nil {
		t.Fatal(err)
	}
	if got.CacheHit {
		t.Error("result computed from replaced ratings served from cache")
	}

	ref := newFixture(t, Deps{Cache: cache.Nop{}})
	for id, r := range map[int64]float64{1: 0.5, 2: 0.5, 101: 0.5, 102: 0.5, 201: 3.5, 202: 5} {
		if _, err := ref.engine.Rate(ctx, "u", id, r); err != nil {
			t.Fatal(err)
		}
	}
	want, err := ref.engine.Recommend(ctx, Request{UserID: "u", Count: 50})
	if err != nil {
		t.Fatal(err)
	}
	a, b := ids(got.Items), ids(want.Items)
	if len(a) != len(b) {
		t.Fatalf("got %d items, uncached engine returned %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order %v differs from uncached engine %v", a, b)
		}
	}
}

func TestGenerations(t *testing.T) {
	t.Parallel()
	var g generations

	before := g.current("alice")
	g.bump("alice")
	if g.current("alice") == before {
		t.Error("bump did not advance alice's generation")
	}
	if g.current("alice") != g.current("alice") {
		t.Error("generation not stable between bumps")
	}
}

type failingRetriever struct{}

func (failingRetriever) NearestToCentroids(context.Context, recommend.CandidateQuery) ([][]recommend.Candidate, error) {
	return nil, errors.New("vector index offline")
}

func (failingRetriever) SimilarItems(context.Context, int64, int, bool) ([]recommend.Candidate, error) {
	return nil, errors.New("vector index offline")
}

func TestRecommend_RetrievalFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{Retriever: failingRetriever{}})
	f.rateDefaults(t, "u")

	if _, err := f.engine.Recommend(context.Background(), Request{UserID: "u"}); err == nil {
		t.Error("expected error when every retrieval fails")
	}
	if f.backend.Len() != 0 {
		t.Error("failed pass was cached")
	}
}

func TestRateUnrate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	ctx := context.Background()

	if _, err := f.engine.Rate(ctx, "u", 1, 4.2); !errors.Is(err, recommend.ErrInvalidRating) {
		t.Errorf("err = %v, want ErrInvalidRating", err)
	}
	if _, err := f.engine.Rate(ctx, "", 1, 4); !errors.Is(err, recommend.ErrInvalidParams) {
		t.Errorf("empty user: err = %v, want ErrInvalidParams", err)
	}
	if _, err := f.engine.Unrate(ctx, "u", 1); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if _, err := f.engine.Rate(ctx, "u", 1, 4); err != nil {
		t.Fatal(err)
	}
	ratings, _ := f.engine.ListRatings(ctx, "u")
	if len(ratings) != 1 {
		t.Errorf("ratings = %+v", ratings)
	}
	if n, err := f.engine.RebuildUserEmbedding(ctx, "u"); err != nil || n != 1 {
		t.Errorf("RebuildUserEmbedding = %d, %v", n, err)
	}
	res, err := f.engine.Unrate(ctx, "u", 1)
	if err != nil || !res.EmbeddingDeleted {
		t.Errorf("Unrate = %+v, %v", res, err)
	}
}

func TestSimilar(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	ctx := context.Background()

	got, err := f.engine.Similar(ctx, 1, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Errorf("default limit: got %d, want 10", len(got))
	}
	for _, c := range got {
		if c.ItemID == 1 {
			t.Error("item is similar to itself")
		}
		if c.ItemID > 100 {
			t.Errorf("item %d from another group ranked in top 10", c.ItemID)
		}
	}

	got, _ = f.engine.Similar(ctx, 1, 1000, true)
	if len(got) != 89 {
		t.Errorf("clamped limit with inactive: got %d, want 89", len(got))
	}

	if _, err := f.engine.Similar(ctx, 9999, 5, false); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertItems_Dimension(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})

	err := f.engine.UpsertItems(context.Background(), []recommend.Item{{ID: 999, Embedding: []float64{1, 2}}})
	if !errors.Is(err, recommend.ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
	if err := f.engine.UpsertItems(context.Background(), []recommend.Item{{ID: 999, Embedding: []float64{1, 2, 3, 4}}}); err != nil {
		t.Errorf("valid upsert: %v", err)
	}
}

func TestAssignNearest(t *testing.T) {
	t.Parallel()

	lists := [][]recommend.Candidate{
		{{ItemID: 1, Distance: 0.1}, {ItemID: 2, Distance: 0.3}, {ItemID: 3, Distance: 0.2}},
		{{ItemID: 2, Distance: 0.2}, {ItemID: 3, Distance: 0.2}, {ItemID: 4, Distance: 0.5}, {ItemID: 4, Distance: 0.5}},
	}
	got := assignNearest(lists)

	want := [][]int64{{1, 3}, {2, 4}}
	for ci := range want {
		if len(got[ci]) != len(want[ci]) {
			t.Fatalf("cluster %d = %+v, want ids %v", ci, got[ci], want[ci])
		}
		for i, id := range want[ci] {
			if got[ci][i].ItemID != id || got[ci][i].Cluster != ci {
				t.Errorf("cluster %d[%d] = %+v, want id %d", ci, i, got[ci][i], id)
			}
		}
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()
	if !IsClientError(recommend.ErrNotEnoughRatings) || IsClientError(errors.New("db down")) {
		t.Error("IsClientError misclassified")
	}
}
