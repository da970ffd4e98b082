// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package recommend

import "context"

// RatingStore persists explicit ratings.
type RatingStore interface {
	// GetRating returns the rating for (user, item), or ErrNotFound.
	GetRating(ctx context.Context, userID string, itemID int64) (Rating, error)

	// UpsertRating creates or replaces a rating.
	UpsertRating(ctx context.Context, r Rating) error

	// DeleteRating removes a rating. Deleting a missing rating returns ErrNotFound.
	DeleteRating(ctx context.Context, userID string, itemID int64) error

	// CountRatings returns the number of ratings the user holds.
	CountRatings(ctx context.Context, userID string) (int, error)

	// ListRatings returns all ratings of a user ordered by item ID.
	ListRatings(ctx context.Context, userID string) ([]Rating, error)
}

// EmbeddingStore persists item and user vectors.
type EmbeddingStore interface {
	// ItemEmbedding returns the embedding of one item, or ErrNotFound.
	ItemEmbedding(ctx context.Context, itemID int64) ([]float64, error)

	// ItemEmbeddings returns the embeddings of the requested items.
	// Items without an embedding are absent from the map.
	ItemEmbeddings(ctx context.Context, itemIDs []int64) (map[int64][]float64, error)

	// UserEmbedding returns the accumulated user vector, or ErrNotFound.
	UserEmbedding(ctx context.Context, userID string) ([]float64, error)

	// SetUserEmbedding creates or replaces the user vector.
	SetUserEmbedding(ctx context.Context, userID string, vec []float64) error

	// DeleteUserEmbedding removes the user vector. Missing vectors are not an error.
	DeleteUserEmbedding(ctx context.Context, userID string) error
}

// CandidateRetriever performs nearest-neighbour search over item embeddings.
type CandidateRetriever interface {
	// NearestToCentroids returns, per centroid, the nearest items by cosine
	// distance. Result i belongs to q.Centroids[i]; Candidate.Cluster is set to i.
	NearestToCentroids(ctx context.Context, q CandidateQuery) ([][]Candidate, error)

	// SimilarItems returns the nearest items to an item's own embedding,
	// excluding the item itself.
	SimilarItems(ctx context.Context, itemID int64, limit int, includeInactive bool) ([]Candidate, error)
}

// EventLog records rating events.
type EventLog interface {
	AppendEvent(ctx context.Context, e Event) error
}

// ItemCatalog ingests catalog items and their embeddings.
type ItemCatalog interface {
	UpsertItems(ctx context.Context, items []Item) error
}

// Store is the full storage surface used by the engine.
type Store interface {
	RatingStore
	EmbeddingStore
	CandidateRetriever
	EventLog
	ItemCatalog

	Ping(ctx context.Context) error
	Close() error
}
