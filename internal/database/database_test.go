// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/tastemap/internal/config"
	"github.com/tomtom215/tastemap/internal/recommend"
)

// testDBSemaphore serializes DuckDB tests; concurrent CGO connections can
// hang under CI resource pressure. Held for the whole test.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2})
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() { _ = res.db.Close() })
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

func seedItems(t *testing.T, db *DB) {
	t.Helper()
	items := []recommend.Item{
		{ID: 1, ItemInfo: recommend.ItemInfo{Name: "a", Active: true, Bias: 0.2}, Embedding: []float64{1, 0}},
		{ID: 2, ItemInfo: recommend.ItemInfo{Name: "b", Active: true}, Embedding: []float64{0.9, 0.1}},
		{ID: 3, ItemInfo: recommend.ItemInfo{Name: "c", Active: false}, Embedding: []float64{0.95, 0.05}},
		{ID: 4, ItemInfo: recommend.ItemInfo{Name: "d", Active: true}, Embedding: []float64{0, 1}},
		{ID: 5, ItemInfo: recommend.ItemInfo{Name: "e", Active: true}},
		{ID: 6, ItemInfo: recommend.ItemInfo{Name: "f", Active: true}, Embedding: []float64{1, 0, 0}},
	}
	if err := db.UpsertItems(context.Background(), items); err != nil {
		t.Fatalf("UpsertItems: %v", err)
	}
}

func TestDB_Ratings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetRating(ctx, "u", 1); !errors.Is(err, recommend.ErrNotFound) {
		t.Fatalf("GetRating missing: err = %v", err)
	}

	for _, r := range []recommend.Rating{
		{UserID: "u", ItemID: 2, Rating: 4},
		{UserID: "u", ItemID: 1, Rating: 3.5},
		{UserID: "u", ItemID: 1, Rating: 5},
		{UserID: "v", ItemID: 1, Rating: 1},
	} {
		if err := db.UpsertRating(ctx, r); err != nil {
			t.Fatalf("UpsertRating: %v", err)
		}
	}

	got, err := db.GetRating(ctx, "u", 1)
	if err != nil || got.Rating != 5 {
		t.Errorf("GetRating = %+v, %v", got, err)
	}
	if n, _ := db.CountRatings(ctx, "u"); n != 2 {
		t.Errorf("CountRatings = %d, want 2", n)
	}

	list, err := db.ListRatings(ctx, "u")
	if err != nil || len(list) != 2 || list[0].ItemID != 1 || list[1].ItemID != 2 {
		t.Errorf("ListRatings = %+v, %v", list, err)
	}

	if err := db.DeleteRating(ctx, "u", 1); err != nil {
		t.Fatalf("DeleteRating: %v", err)
	}
	if err := db.DeleteRating(ctx, "u", 1); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("second DeleteRating: err = %v", err)
	}
	if list, _ := db.ListRatings(ctx, "nobody"); list == nil || len(list) != 0 {
		t.Errorf("ListRatings for unknown user = %#v", list)
	}
}

func TestDB_Embeddings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedItems(t, db)

	vec, err := db.ItemEmbedding(ctx, 2)
	if err != nil || len(vec) != 2 || vec[0] != 0.9 || vec[1] != 0.1 {
		t.Errorf("ItemEmbedding = %v, %v", vec, err)
	}
	if _, err := db.ItemEmbedding(ctx, 5); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("item without embedding: err = %v", err)
	}

	m, err := db.ItemEmbeddings(ctx, []int64{1, 4, 5, 99})
	if err != nil || len(m) != 2 || m[4][1] != 1 {
		t.Errorf("ItemEmbeddings = %v, %v", m, err)
	}

	if _, err := db.UserEmbedding(ctx, "u"); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("UserEmbedding missing: err = %v", err)
	}
	want := []float64{0.1, -2.5e-7}
	if err := db.SetUserEmbedding(ctx, "u", want); err != nil {
		t.Fatal(err)
	}
	if err := db.SetUserEmbedding(ctx, "u", []float64{1.25, 3}); err != nil {
		t.Fatal(err)
	}
	got, err := db.UserEmbedding(ctx, "u")
	if err != nil || got[0] != 1.25 || got[1] != 3 {
		t.Errorf("UserEmbedding = %v, %v", got, err)
	}
	if err := db.SetUserEmbedding(ctx, "u", []float64{math.NaN()}); err == nil {
		t.Error("expected error for NaN component")
	}
	if err := db.DeleteUserEmbedding(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteUserEmbedding(ctx, "u"); err != nil {
		t.Errorf("deleting a missing vector: %v", err)
	}
}

func TestDB_UpsertItemsReplacesEmbedding(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedItems(t, db)

	if err := db.UpsertItems(ctx, []recommend.Item{{ID: 1, ItemInfo: recommend.ItemInfo{Name: "a2", Active: true}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ItemEmbedding(ctx, 1); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("embedding survived replacement: err = %v", err)
	}
	items, embedded, err := db.CountItems(ctx)
	if err != nil || items != 6 || embedded != 4 {
		t.Errorf("CountItems = %d, %d, %v", items, embedded, err)
	}
}

func TestDB_NearestToCentroids(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedItems(t, db)

	tests := []struct {
		name  string
		query recommend.CandidateQuery
		want  [][]int64
	}{
		{
			name:  "active only",
			query: recommend.CandidateQuery{Centroids: [][]float64{{1, 0}, {0, 1}}, Limit: 2},
			want:  [][]int64{{1, 2}, {4, 2}},
		},
		{
			name:  "include inactive",
			query: recommend.CandidateQuery{Centroids: [][]float64{{1, 0}}, Limit: 3, IncludeInactive: true},
			want:  [][]int64{{1, 3, 2}},
		},
		{
			name:  "exclusions",
			query: recommend.CandidateQuery{Centroids: [][]float64{{1, 0}}, Limit: 5, ExcludeIDs: []int64{1, 2}},
			want:  [][]int64{{4}},
		},
		{
			name:  "zero limit",
			query: recommend.CandidateQuery{Centroids: [][]float64{{1, 0}}, Limit: 0},
			want:  [][]int64{{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lists, err := db.NearestToCentroids(ctx, tt.query)
			if err != nil {
				t.Fatalf("NearestToCentroids: %v", err)
			}
			if len(lists) != len(tt.want) {
				t.Fatalf("got %d lists, want %d", len(lists), len(tt.want))
			}
			for ci, want := range tt.want {
				if len(lists[ci]) != len(want) {
					t.Fatalf("list %d = %+v, want ids %v", ci, lists[ci], want)
				}
				for i, id := range want {
					c := lists[ci][i]
					if c.ItemID != id || c.Cluster != ci {
						t.Errorf("list %d[%d] = id %d cluster %d, want id %d", ci, i, c.ItemID, c.Cluster, id)
					}
					if len(c.Embedding) != 2 {
						t.Errorf("candidate %d embedding = %v", c.ItemID, c.Embedding)
					}
				}
			}
		})
	}

	lists, _ := db.NearestToCentroids(ctx, recommend.CandidateQuery{Centroids: [][]float64{{1, 0}}, Limit: 1})
	if c := lists[0][0]; math.Abs(c.Distance) > 1e-9 || c.Bias != 0.2 || c.Name != "a" {
		t.Errorf("top candidate = %+v", c)
	}
}

func TestDB_SimilarItems(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedItems(t, db)

	got, err := db.SimilarItems(ctx, 1, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ItemID != 2 || got[1].ItemID != 4 {
		t.Errorf("SimilarItems = %+v", got)
	}
	if _, err := db.SimilarItems(ctx, 5, 10, false); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDB_Events(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []recommend.Event{
		{Type: recommend.EventRate, UserID: "u", ItemID: 1, Rating: 4.5, CreatedAt: t0},
		{Type: recommend.EventUnrate, UserID: "u", ItemID: 1, CreatedAt: t0.Add(time.Minute)},
		{Type: recommend.EventRate, UserID: "v", ItemID: 2, Rating: 3, CreatedAt: t0},
	}
	for _, e := range events {
		if err := db.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	got, err := db.ListEvents(ctx, "u", 0)
	if err != nil || len(got) != 2 {
		t.Fatalf("ListEvents = %+v, %v", got, err)
	}
	if got[0].Type != recommend.EventRate || got[0].Rating != 4.5 || got[1].Type != recommend.EventUnrate {
		t.Errorf("events = %+v", got)
	}
	if !got[0].CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, t0)
	}
	if limited, _ := db.ListEvents(ctx, "u", 1); len(limited) != 1 {
		t.Errorf("limited = %+v", limited)
	}
}

func TestDB_Migrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	v, err := db.GetCurrentSchemaVersion(ctx)
	if err != nil || v != len(migrations()) {
		t.Errorf("schema version = %d, %v", v, err)
	}
	if err := db.runVersionedMigrations(); err != nil {
		t.Errorf("re-running migrations: %v", err)
	}
	history, err := db.GetMigrationHistory(ctx)
	if err != nil || len(history) != len(migrations()) {
		t.Errorf("history = %+v, %v", history, err)
	}
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestConnectionString(t *testing.T) {
	t.Parallel()

	got := connectionString(&config.DatabaseConfig{Path: "/data/x.duckdb", Threads: 3, MaxMemory: "2GB"})
	want := "/data/x.duckdb?access_mode=read_write&threads=3&max_memory=2GB&preserve_insertion_order=false&autoinstall_known_extensions=false&autoload_known_extensions=false"
	if got != want {
		t.Errorf("connectionString = %q", got)
	}
	if got := connectionString(&config.DatabaseConfig{Threads: 1}); got[:len(":memory:?")] != ":memory:?" {
		t.Errorf("empty path = %q", got)
	}
}
