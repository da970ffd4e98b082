// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package embedding maintains the per-user preference vector.
//
// The vector is the weighted sum of the embeddings of every item the user
// rated, each scaled by vecmath.RatingWeight of its rating. It is updated
// incrementally on rate and unrate, and can be rebuilt from the full rating
// history.
//
// All operations for one user run under that user's lock stripe, so the rating
// write and the vector update form one unit with respect to any concurrent
// operation on the same user. The rating write is authoritative: when the
// vector update fails afterwards the failure is logged and counted, and the
// operation still succeeds.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/vecmath"
)

// lockStripes is the number of user lock stripes. Users that share a stripe
// serialize against each other.
const lockStripes = 256

// ErrItemEmbeddingNotFound reports a rated item without an embedding. Rate
// logs it and still succeeds.
var ErrItemEmbeddingNotFound = errors.New("item embedding not found")

// Store is the storage surface the maintainer needs.
type Store interface {
	recommend.RatingStore
	recommend.EmbeddingStore
	recommend.EventLog
}

// Result reports what a rate or unrate changed.
type Result struct {
	// Previous is the rating replaced or removed, if any.
	Previous *recommend.Rating

	// EmbeddingUpdated is false when the vector update soft-failed.
	EmbeddingUpdated bool

	// EmbeddingDeleted is true when the last rating was removed.
	EmbeddingDeleted bool
}

// Maintainer applies rating changes to ratings and user vectors.
type Maintainer struct {
	store     Store
	dimension int
	logger    zerolog.Logger
	now       func() time.Time

	userLocks [lockStripes]sync.Mutex
}

// NewMaintainer creates a maintainer. dimension 0 accepts any embedding length.
func NewMaintainer(store Store, dimension int, logger *zerolog.Logger) *Maintainer {
	return &Maintainer{
		store:     store,
		dimension: dimension,
		logger:    logger.With().Str("component", "embedding_maintainer").Logger(),
		now:       time.Now,
	}
}

// acquireUserLock locks the stripe guarding userID and returns it.
func (m *Maintainer) acquireUserLock(userID string) *sync.Mutex {
	mu := &m.userLocks[recommend.UserStripe(userID, lockStripes)]
	mu.Lock()
	return mu
}

// Rate records rating for (userID, itemID) and folds it into the user vector.
//
// Re-rating first subtracts the previous contribution, so the vector always
// equals the weighted sum over the current rating set.
func (m *Maintainer) Rate(ctx context.Context, userID string, itemID int64, rating float64) (*Result, error) {
	if !vecmath.ValidRating(rating) {
		return nil, fmt.Errorf("%w: got %v", recommend.ErrInvalidRating, rating)
	}

	mu := m.acquireUserLock(userID)
	defer mu.Unlock()

	prev, err := m.store.GetRating(ctx, userID, itemID)
	var previous *recommend.Rating
	switch {
	case err == nil:
		previous = &prev
	case errors.Is(err, recommend.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to read rating: %w", err)
	}

	now := m.now().UTC()
	if err := m.store.UpsertRating(ctx, recommend.Rating{
		UserID:    userID,
		ItemID:    itemID,
		Rating:    rating,
		UpdatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}

	res := &Result{Previous: previous}
	if err := m.applyRate(ctx, userID, itemID, rating, previous); err != nil {
		m.softFail("rate", userID, itemID, err)
	} else {
		res.EmbeddingUpdated = true
	}

	m.appendEvent(ctx, recommend.Event{
		Type:      recommend.EventRate,
		UserID:    userID,
		ItemID:    itemID,
		Rating:    rating,
		CreatedAt: now,
	})

	return res, nil
}

func (m *Maintainer) applyRate(ctx context.Context, userID string, itemID int64, rating float64, previous *recommend.Rating) error {
	itemVec, err := m.itemEmbedding(ctx, itemID)
	if err != nil {
		return err
	}

	userVec, err := m.store.UserEmbedding(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, recommend.ErrNotFound):
		if previous != nil {
			// Ratings exist but the vector is gone; a delta would be wrong.
			return m.rebuildLocked(ctx, userID)
		}
		userVec = vecmath.Zero(len(itemVec))
	default:
		return fmt.Errorf("failed to read user embedding: %w", err)
	}

	if previous != nil {
		userVec, err = vecmath.WeightedSubtract(userVec, itemVec, vecmath.RatingWeight(previous.Rating))
		if err != nil {
			return err
		}
	}
	userVec, err = vecmath.WeightedAdd(userVec, itemVec, vecmath.RatingWeight(rating))
	if err != nil {
		return err
	}

	if err := m.store.SetUserEmbedding(ctx, userID, userVec); err != nil {
		return fmt.Errorf("failed to save user embedding: %w", err)
	}
	return nil
}

// Unrate removes the rating for (userID, itemID) and its contribution to the
// user vector. Removing the last rating deletes the vector entirely.
func (m *Maintainer) Unrate(ctx context.Context, userID string, itemID int64) (*Result, error) {
	mu := m.acquireUserLock(userID)
	defer mu.Unlock()

	// The rating value must be read before the record is deleted.
	prev, err := m.store.GetRating(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to read rating: %w", err)
	}

	count, err := m.store.CountRatings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count ratings: %w", err)
	}

	if err := m.store.DeleteRating(ctx, userID, itemID); err != nil {
		return nil, fmt.Errorf("failed to delete rating: %w", err)
	}

	res := &Result{Previous: &prev}
	if count <= 1 {
		if err := m.store.DeleteUserEmbedding(ctx, userID); err != nil {
			m.softFail("unrate", userID, itemID, err)
		} else {
			res.EmbeddingUpdated = true
			res.EmbeddingDeleted = true
		}
	} else if err := m.applyUnrate(ctx, userID, itemID, prev.Rating); err != nil {
		m.softFail("unrate", userID, itemID, err)
	} else {
		res.EmbeddingUpdated = true
	}

	m.appendEvent(ctx, recommend.Event{
		Type:      recommend.EventUnrate,
		UserID:    userID,
		ItemID:    itemID,
		Rating:    prev.Rating,
		CreatedAt: m.now().UTC(),
	})

	return res, nil
}

func (m *Maintainer) applyUnrate(ctx context.Context, userID string, itemID int64, rating float64) error {
	itemVec, err := m.itemEmbedding(ctx, itemID)
	if err != nil {
		return err
	}

	userVec, err := m.store.UserEmbedding(ctx, userID)
	if errors.Is(err, recommend.ErrNotFound) {
		return m.rebuildLocked(ctx, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to read user embedding: %w", err)
	}

	userVec, err = vecmath.WeightedSubtract(userVec, itemVec, vecmath.RatingWeight(rating))
	if err != nil {
		return err
	}

	if err := m.store.SetUserEmbedding(ctx, userID, userVec); err != nil {
		return fmt.Errorf("failed to save user embedding: %w", err)
	}
	return nil
}

// Rebuild recomputes the user vector from the full rating history. Items
// without an embedding are skipped. A user without ratings loses the vector.
func (m *Maintainer) Rebuild(ctx context.Context, userID string) (int, error) {
	mu := m.acquireUserLock(userID)
	defer mu.Unlock()

	ratings, err := m.store.ListRatings(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list ratings: %w", err)
	}
	return len(ratings), m.rebuildFrom(ctx, userID, ratings)
}

func (m *Maintainer) rebuildLocked(ctx context.Context, userID string) error {
	ratings, err := m.store.ListRatings(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list ratings: %w", err)
	}
	return m.rebuildFrom(ctx, userID, ratings)
}

func (m *Maintainer) rebuildFrom(ctx context.Context, userID string, ratings []recommend.Rating) error {
	if len(ratings) == 0 {
		return m.store.DeleteUserEmbedding(ctx, userID)
	}

	ids := recommend.SortedItemIDs(ratings)
	embeddings, err := m.store.ItemEmbeddings(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load item embeddings: %w", err)
	}

	var userVec []float64
	skipped := 0
	for i := range ratings {
		itemVec, ok := embeddings[ratings[i].ItemID]
		if !ok {
			skipped++
			continue
		}
		if err := m.checkDimension(ratings[i].ItemID, itemVec); err != nil {
			return err
		}
		if userVec == nil {
			userVec = vecmath.Zero(len(itemVec))
		}
		userVec, err = vecmath.WeightedAdd(userVec, itemVec, vecmath.RatingWeight(ratings[i].Rating))
		if err != nil {
			return fmt.Errorf("item %d: %w", ratings[i].ItemID, err)
		}
	}

	if skipped > 0 {
		m.logger.Warn().
			Str("user_id", userID).
			Int("skipped", skipped).
			Msg("Rated items without embeddings excluded from rebuild")
	}

	if userVec == nil {
		return m.store.DeleteUserEmbedding(ctx, userID)
	}
	if err := m.store.SetUserEmbedding(ctx, userID, userVec); err != nil {
		return fmt.Errorf("failed to save user embedding: %w", err)
	}
	return nil
}

func (m *Maintainer) itemEmbedding(ctx context.Context, itemID int64) ([]float64, error) {
	vec, err := m.store.ItemEmbedding(ctx, itemID)
	if errors.Is(err, recommend.ErrNotFound) {
		return nil, fmt.Errorf("%w: item %d", ErrItemEmbeddingNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read item embedding: %w", err)
	}
	if err := m.checkDimension(itemID, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (m *Maintainer) checkDimension(itemID int64, vec []float64) error {
	if m.dimension > 0 && len(vec) != m.dimension {
		return fmt.Errorf("item %d: %w: %d != %d", itemID, vecmath.ErrDimensionMismatch, len(vec), m.dimension)
	}
	return nil
}

func (m *Maintainer) softFail(op, userID string, itemID int64, err error) {
	metrics.RecordMaintenanceFailure(op)
	m.logger.Warn().
		Err(err).
		Str("op", op).
		Str("user_id", userID).
		Int64("item_id", itemID).
		Msg("User embedding update failed; rating kept")
}

func (m *Maintainer) appendEvent(ctx context.Context, e recommend.Event) {
	if err := m.store.AppendEvent(ctx, e); err != nil {
		m.logger.Warn().
			Err(err).
			Str("type", string(e.Type)).
			Str("user_id", e.UserID).
			Int64("item_id", e.ItemID).
			Msg("Failed to append rating event")
	}
}
