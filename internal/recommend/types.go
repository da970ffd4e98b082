// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package recommend

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// AnonymousUser is the identity used for seeds and cache keys when no user is known.
const AnonymousUser = "anonymous"

// Sentinel errors shared by the engine and its collaborators.
var (
	// ErrNotFound is returned by stores when a rating, item or embedding does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotEnoughRatings is returned when a user has too few ratings for recommendations.
	ErrNotEnoughRatings = errors.New("not enough ratings")

	// ErrInvalidRating is returned for ratings outside [0.5, 5.0] or off the 0.5 step.
	ErrInvalidRating = errors.New("rating must be between 0.5 and 5.0 in 0.5 increments")

	// ErrInvalidParams is returned when ranking or selection parameters are out of range.
	ErrInvalidParams = errors.New("invalid parameters")
)

// ItemInfo is the descriptive metadata and quality signals of a catalog item.
type ItemInfo struct {
	// Name is the display name.
	Name string `json:"name"`

	// Category is a coarse grouping such as a style or genre.
	Category string `json:"category,omitempty"`

	// Producer is the maker of the item.
	Producer string `json:"producer,omitempty"`

	// Active is false for retired items. Inactive items are excluded from
	// candidate retrieval unless explicitly requested.
	Active bool `json:"active"`

	// Bias is the learned quality term blended into the ranking score.
	Bias float64 `json:"bias"`

	// Popularity is the number of reviews backing the item.
	Popularity int `json:"popularity"`
}

// Item is a catalog entry with its taste embedding.
type Item struct {
	ID int64 `json:"id"`
	ItemInfo
	Embedding []float64 `json:"embedding,omitempty"`
}

// Rating is a single explicit (user, item, rating) record.
type Rating struct {
	UserID    string    `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Rating    float64   `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatedItem is a rated item joined with its embedding, the clustering input.
type RatedItem struct {
	ItemID    int64
	Embedding []float64
	Rating    float64
}

// Candidate is an unrated item proposed for a cluster by the retrieval collaborator.
type Candidate struct {
	ItemID int64 `json:"item_id"`
	ItemInfo

	// Embedding is stripped before caching and rehydrated on read.
	Embedding []float64 `json:"embedding,omitempty"`

	// Distance is the cosine distance to the assigned centroid, in [0, 2].
	Distance float64 `json:"distance"`

	// Cluster is the index of the assigned centroid.
	Cluster int `json:"cluster"`
}

// Similarity returns 1 - Distance.
//
//nolint:gocritic // value receiver keeps Candidate usable in value slices
func (c Candidate) Similarity() float64 {
	return 1 - c.Distance
}

// RankedCandidate is a candidate with its computed ranking score.
type RankedCandidate struct {
	Candidate
	Score float64 `json:"score"`
}

// EventType classifies rating events.
type EventType string

const (
	// EventRate is recorded when a rating is created or changed.
	EventRate EventType = "rate"
	// EventUnrate is recorded when a rating is removed.
	EventUnrate EventType = "unrate"
)

// Event is an append-only record of a rating change.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Rating    float64   `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CandidateQuery describes a nearest-neighbour lookup around a set of centroids.
type CandidateQuery struct {
	// Centroids are the query vectors, one result list per centroid.
	Centroids [][]float64

	// Limit is the maximum number of results per centroid.
	Limit int

	// IncludeInactive includes retired items.
	IncludeInactive bool

	// ExcludeIDs are item IDs never returned (the user's rated items).
	ExcludeIDs []int64
}

// SortedItemIDs returns the IDs of ratings sorted ascending.
func SortedItemIDs(ratings []Rating) []int64 {
	ids := make([]int64, len(ratings))
	for i := range ratings {
		ids[i] = ratings[i].ItemID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// JoinIDs renders ids as a comma-separated list.
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// UserOrAnonymous returns userID, or AnonymousUser when empty.
func UserOrAnonymous(userID string) string {
	if userID == "" {
		return AnonymousUser
	}
	return userID
}

// SeedString derives the ranking seed from the user and the sorted rated IDs.
// An unchanged rating history always yields the same seed.
func SeedString(userID string, sortedIDs []int64) string {
	return UserOrAnonymous(userID) + ":" + JoinIDs(sortedIDs)
}
