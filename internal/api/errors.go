// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tastemap/internal/logging"
	"github.com/tomtom215/tastemap/internal/recommend"
	"github.com/tomtom215/tastemap/internal/recommend/retrieval"
)

// errorMapping is the HTTP rendering of an engine error.
type errorMapping struct {
	status int
	code   string
	// expose controls whether err.Error() is sent to the client. Dependency
	// failures get a generic message.
	expose  bool
	message string
}

// mapError classifies err by the sentinel it wraps.
func mapError(err error) errorMapping {
	switch {
	case errors.Is(err, recommend.ErrInvalidRating):
		return errorMapping{status: http.StatusBadRequest, code: ErrCodeValidationFailed, expose: true}
	case errors.Is(err, recommend.ErrInvalidParams):
		return errorMapping{status: http.StatusBadRequest, code: ErrCodeBadRequest, expose: true}
	case errors.Is(err, recommend.ErrNotFound):
		return errorMapping{status: http.StatusNotFound, code: ErrCodeNotFound, expose: true}
	case errors.Is(err, recommend.ErrNotEnoughRatings):
		return errorMapping{status: http.StatusUnprocessableEntity, code: ErrCodeNotEnoughRatings, expose: true}
	case errors.Is(err, retrieval.ErrRateLimited):
		return errorMapping{status: http.StatusTooManyRequests, code: ErrCodeTooManyRequests,
			message: "Candidate retrieval is rate limited, retry later"}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return errorMapping{status: http.StatusServiceUnavailable, code: ErrCodeServiceUnavailable,
			message: "Candidate retrieval is temporarily unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return errorMapping{status: http.StatusGatewayTimeout, code: ErrCodeTimeout,
			message: "Request timed out"}
	case errors.Is(err, context.Canceled):
		return errorMapping{status: http.StatusServiceUnavailable, code: ErrCodeServiceUnavailable,
			message: "Request canceled"}
	default:
		return errorMapping{status: http.StatusInternalServerError, code: ErrCodeInternalError,
			message: "An internal error occurred"}
	}
}

// writeError renders err as an envelope. Server-side failures are logged
// with the request context; client errors are not.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	m := mapError(err)
	message := m.message
	if m.expose {
		message = err.Error()
	}

	if m.status >= http.StatusInternalServerError {
		logging.CtxErr(r.Context(), err).Str("op", op).Int("status", m.status).Msg("Request failed")
	} else {
		logging.Ctx(r.Context()).Debug().Err(err).Str("op", op).Int("status", m.status).Msg("Request rejected")
	}

	NewResponseWriter(w, r).Error(m.status, m.code, message)
}
