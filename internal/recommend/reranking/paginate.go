// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import (
	"sort"

	"github.com/tomtom215/tastemap/internal/recommend"
)

// Page is one slice of a complete ordering.
type Page struct {
	Items          []recommend.RankedCandidate `json:"items"`
	Offset         int                         `json:"offset"`
	Count          int                         `json:"count"`
	HasMore        bool                        `json:"has_more"`
	TotalAvailable int                         `json:"total_available"`
}

// Paginate returns order[offset:offset+count]. Negative arguments are
// treated as zero; an offset past the end yields an empty page.
func Paginate(order []recommend.RankedCandidate, offset, count int) Page {
	if offset < 0 {
		offset = 0
	}
	if count < 0 {
		count = 0
	}

	start := offset
	if start > len(order) {
		start = len(order)
	}
	// Compare against the remainder so offset+count never overflows.
	n := len(order) - start
	if count < n {
		n = count
	}

	items := make([]recommend.RankedCandidate, n)
	copy(items, order[start:start+n])

	return Page{
		Items:          items,
		Offset:         offset,
		Count:          count,
		HasMore:        offset < len(order) && count < len(order)-offset,
		TotalAvailable: len(order),
	}
}

func sortRanked(items []recommend.RankedCandidate) {
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].Score != items[b].Score {
			return items[a].Score > items[b].Score
		}
		return items[a].ItemID < items[b].ItemID
	})
}
