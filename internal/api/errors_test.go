// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/retrieval"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantExpose bool
	}{
		{"invalid rating", fmt.Errorf("%w: got 7", recommend.ErrInvalidRating), http.StatusBadRequest, ErrCodeValidationFailed, true},
		{"invalid params", fmt.Errorf("%w: offset", recommend.ErrInvalidParams), http.StatusBadRequest, ErrCodeBadRequest, true},
		{"not found", fmt.Errorf("failed to read rating: %w", recommend.ErrNotFound), http.StatusNotFound, ErrCodeNotFound, true},
		{"not enough ratings", fmt.Errorf("%w: have 2, need 5", recommend.ErrNotEnoughRatings), http.StatusUnprocessableEntity, ErrCodeNotEnoughRatings, true},
		{"rate limited", fmt.Errorf("%w: burst", retrieval.ErrRateLimited), http.StatusTooManyRequests, ErrCodeTooManyRequests, false},
		{"breaker open", gobreaker.ErrOpenState, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, false},
		{"breaker half open", gobreaker.ErrTooManyRequests, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, ErrCodeTimeout, false},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, false},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := mapError(tt.err)
			if m.status != tt.wantStatus {
				t.Errorf("status = %d, want %d", m.status, tt.wantStatus)
			}
			if m.code != tt.wantCode {
				t.Errorf("code = %q, want %q", m.code, tt.wantCode)
			}
			if m.expose != tt.wantExpose {
				t.Errorf("expose = %v, want %v", m.expose, tt.wantExpose)
			}
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	writeError(w, r, "recommend", errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("internal error leaked to client: %s", w.Body.String())
	}
}

func TestWriteError_ExposesClientErrors(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	writeError(w, r, "recommend", fmt.Errorf("%w: have 2, need 5", recommend.ErrNotEnoughRatings))

	response := decodeEnvelope(t, w)
	if response.Error == nil || !strings.Contains(response.Error.Message, "have 2, need 5") {
		t.Errorf("unexpected error body: %s", w.Body.String())
	}
}
