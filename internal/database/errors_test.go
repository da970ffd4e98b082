// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/tastemap/internal/logging"
)

type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

func TestCloseWithLog(t *testing.T) {
	t.Parallel()

	newCtx := func(buf *bytes.Buffer) context.Context {
		ctx := logging.ContextWithLogger(context.Background(), logging.NewTestLogger(buf))
		return logging.ContextWithRequestID(ctx, "req-close")
	}

	t.Run("nil closer does not panic", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		closeWithLog(newCtx(&buf), nil, "rows")
		if buf.Len() > 0 {
			t.Errorf("unexpected log output: %s", buf.String())
		}
	})

	t.Run("error during close is logged with context", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		closer := &mockCloser{err: errors.New("close failed: connection reset")}
		closeWithLog(newCtx(&buf), closer, "rows")

		if !closer.closed {
			t.Error("closer not closed")
		}
		out := buf.String()
		for _, want := range []string{"Failed to close resource", `"resource":"rows"`, "connection reset", `"request_id":"req-close"`} {
			if !strings.Contains(out, want) {
				t.Errorf("log %q missing %q", out, want)
			}
		}
	})

	t.Run("clean close logs nothing", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		closer := &mockCloser{}
		closeWithLog(newCtx(&buf), closer, "rows")
		if !closer.closed || buf.Len() > 0 {
			t.Errorf("closed=%v output=%q", closer.closed, buf.String())
		}
	})
}

func TestCloseQuietly(t *testing.T) {
	closeQuietly(nil)
	closer := &mockCloser{err: errors.New("close failed")}
	closeQuietly(closer)
	if !closer.closed {
		t.Error("closer not closed")
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		connection bool
		conflict   bool
	}{
		{nil, false, false},
		{errors.New("sql: database is closed"), true, false},
		{errors.New("driver: bad connection"), true, false},
		{errors.New("TransactionContext Error: Transaction conflict: cannot update"), false, true},
		{errors.New("Constraint Error: Duplicate key"), false, false},
	}
	for _, tt := range tests {
		if got := isConnectionError(tt.err); got != tt.connection {
			t.Errorf("isConnectionError(%v) = %v", tt.err, got)
		}
		if got := isTransactionConflict(tt.err); got != tt.conflict {
			t.Errorf("isTransactionConflict(%v) = %v", tt.err, got)
		}
	}
}
