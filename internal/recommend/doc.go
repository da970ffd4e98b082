// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package recommend holds the shared vocabulary of the taste-cluster
// recommendation engine: domain types, collaborator interfaces and the
// engine configuration.
//
// # Architecture
//
// Recommendations are produced from a handful of explicit ratings on
// fixed-dimension taste embeddings:
//
//   - embedding: incremental maintenance of the per-user preference vector
//   - clustering: weighted k-means++ over the user's rated-item embeddings
//   - adaptive: picks the largest k whose clusters still have enough candidates
//   - reranking: deterministic diversity-aware total order, paginated by slicing
//   - cache: memoizes candidate retrieval keyed by the rating fingerprint
//   - engine: wires the pieces together behind Rate, Unrate and Recommend
//
// Storage is abstracted behind RatingStore, EmbeddingStore,
// CandidateRetriever, EventLog and ItemCatalog. DuckDB, PostgreSQL/pgvector
// and in-memory implementations live in internal/database,
// internal/postgres and internal/memstore.
//
// # Determinism
//
// Clustering and ranking are seeded from the sorted list of rated item IDs,
// so an unchanged rating history always reproduces the same ordering and
// pagination never needs server-side ranking state.
//
// # Usage
//
//	cfg := recommend.DefaultConfig()
//	eng, err := engine.New(cfg, engine.Deps{Store: store, Cache: c}, logger)
//
//	page, err := eng.Recommend(ctx, engine.Request{
//	    UserID: userID,
//	    Offset: 0,
//	    Count:  20,
//	})
package recommend
