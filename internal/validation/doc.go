// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package validation provides struct validation using go-playground/validator v10.
//
// A singleton validator is built once with WithRequiredStructEnabled and two
// custom tags:
//
//   - half_step: a rating in [0.5, 5.0] on the 0.5 grid
//   - user_id: an opaque identifier of 1-128 characters from [A-Za-z0-9._@:-]
//
// Field names in messages are the json or query tag names, so errors speak
// the wire format:
//
//	type rateRequest struct {
//	    Rating float64 `json:"rating" validate:"half_step"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
