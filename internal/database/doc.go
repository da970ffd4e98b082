// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package database implements recommend.Store on DuckDB.
//
// # Overview
//
// The catalog, ratings, user vectors and the rating event log live in a
// single DuckDB file (or :memory: for tests). Candidate retrieval is an
// exact scan ranked by list_cosine_similarity; DuckDB's columnar execution
// keeps that fast for catalogs in the hundreds of thousands of items.
//
// # Files
//
//   - database.go: lifecycle (open, initialize, checkpoint, close)
//   - database_connection.go: pool tuning and reconnect with backoff
//   - database_schema.go: table and index creation
//   - migrations.go: versioned, append-only schema migrations
//   - ratings.go, embeddings.go, items.go, events.go: recommend.Store methods
//   - candidates.go: nearest-neighbour queries
//   - vector.go: DOUBLE[] literal encoding and scanning
//
// # Vectors
//
// Vectors are bound as text list literals and cast server-side with
// CAST(? AS DOUBLE[]). Floats are rendered with the shortest exact
// representation, so values round-trip bit for bit.
//
// # Usage
//
//	db, err := database.New(&cfg.Database)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	eng, err := engine.New(&cfg.Recommend, engine.Deps{Store: db}, &logger)
package database
