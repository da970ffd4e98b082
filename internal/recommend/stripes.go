// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package recommend

import "github.com/cespare/xxhash/v2"

// UserStripe maps userID onto one of n stripes. The mapping is stable for
// the life of the process. n must be positive.
func UserStripe(userID string, n int) int {
	return int(xxhash.Sum64String(userID) % uint64(n))
}
