// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package reranking

import (
	"math"
	"testing"

	"github.com/tomtom215/tastemap/internal/recommend"
)

func TestPaginate(t *testing.T) {
	t.Parallel()

	order := make([]recommend.RankedCandidate, 25)
	for i := range order {
		order[i].ItemID = int64(i + 1)
	}

	tests := []struct {
		name          string
		offset, count int
		wantFirst     int64
		wantLen       int
		wantHasMore   bool
	}{
		{"first page", 0, 10, 1, 10, true},
		{"middle page", 10, 10, 11, 10, true},
		{"last partial page", 20, 10, 21, 5, false},
		{"exact end", 15, 10, 16, 10, false},
		{"past end", 30, 10, 0, 0, false},
		{"zero count", 5, 0, 0, 0, true},
		{"negative offset", -5, 3, 1, 3, true},
		{"offset near max int", math.MaxInt - 5, 20, 0, 0, false},
		{"count near max int", 5, math.MaxInt, 6, 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := Paginate(order, tt.offset, tt.count)
			if len(page.Items) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(page.Items), tt.wantLen)
			}
			if tt.wantLen > 0 && page.Items[0].ItemID != tt.wantFirst {
				t.Errorf("first = %d, want %d", page.Items[0].ItemID, tt.wantFirst)
			}
			if page.HasMore != tt.wantHasMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.wantHasMore)
			}
			if page.TotalAvailable != 25 {
				t.Errorf("TotalAvailable = %d, want 25", page.TotalAvailable)
			}
		})
	}
}

func TestPaginate_CopiesItems(t *testing.T) {
	t.Parallel()

	order := []recommend.RankedCandidate{{Score: 1}, {Score: 2}}
	page := Paginate(order, 0, 2)
	page.Items[0].Score = 99
	if order[0].Score != 1 {
		t.Error("Paginate shares the order's backing array")
	}
}
