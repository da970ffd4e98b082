// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"context"
	"io"

	"github.com/tomtom215/tastemap/internal/logging"
)

// closeWithLog closes a result set or statement after the caller is done
// with it. A close error cannot change the result already returned, so it is
// only logged with the request's context fields.
func closeWithLog(ctx context.Context, closer io.Closer, resource string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.CtxErr(ctx, err).
			Str("component", "duckdb").
			Str("resource", resource).
			Msg("Failed to close resource")
	}
}

// closeQuietly is for cleanup on an error path that already returns an error.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
