// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package vecmath

import "math"

// Rating bounds accepted by ValidRating.
const (
	MinRating  = 0.5
	MaxRating  = 5.0
	RatingStep = 0.5
)

// RatingWeight maps a rating to its influence on the user embedding.
//
//	rating < 2       -> 0.025
//	2 <= rating < 3  -> 0.075
//	3 <= rating < 4  -> 0.09
//	rating >= 4      -> 0.9
//
// Loved items dominate the accumulated vector while weak likes and dislikes
// still register.
func RatingWeight(rating float64) float64 {
	switch {
	case rating < 2:
		return 0.025
	case rating < 3:
		return 0.075
	case rating < 4:
		return 0.09
	default:
		return 0.9
	}
}

// ValidRating reports whether r lies in [0.5, 5.0] on a 0.5 step.
func ValidRating(r float64) bool {
	if math.IsNaN(r) || r < MinRating || r > MaxRating {
		return false
	}
	steps := r / RatingStep
	return steps == math.Trunc(steps)
}
