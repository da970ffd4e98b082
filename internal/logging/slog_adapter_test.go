// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		zerologLevel zerolog.Level
		slogLevel    slog.Level
		want         bool
	}{
		{"info logger accepts info", zerolog.InfoLevel, slog.LevelInfo, true},
		{"info logger rejects debug", zerolog.InfoLevel, slog.LevelDebug, false},
		{"warn logger accepts error", zerolog.WarnLevel, slog.LevelError, true},
		{"error logger rejects warn", zerolog.ErrorLevel, slog.LevelWarn, false},
		{"trace logger accepts debug", zerolog.TraceLevel, slog.LevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewSlogHandlerWithLogger(zerolog.New(&bytes.Buffer{}).Level(tt.zerologLevel))
			if got := h.Enabled(context.Background(), tt.slogLevel); got != tt.want {
				t.Errorf("Enabled(%v) = %v, want %v", tt.slogLevel, got, tt.want)
			}
		})
	}
}

// Debug records are subject to the zerolog global level and are covered by
// the Enabled table instead.
func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level     slog.Level
		wantLevel string
	}{
		{slog.LevelInfo, `"level":"info"`},
		{slog.LevelWarn, `"level":"warn"`},
		{slog.LevelError, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			h := NewSlogHandlerWithLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))

			record := slog.NewRecord(time.Now(), tt.level, "message", 0)
			if err := h.Handle(context.Background(), record); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.wantLevel) {
				t.Errorf("output %s missing %s", buf.String(), tt.wantLevel)
			}
		})
	}
}

func TestSlogHandler_Attributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	logger.With("service", "supervisor").
		WithGroup("event").
		Info("service restarted",
			"name", "http-server",
			"restarts", 3,
			"backoff", 2*time.Second,
			"failed", true,
			slog.Group("cause", "kind", "panic"),
		)

	output := buf.String()
	for _, want := range []string{
		`"service":"supervisor"`,
		`"event.name":"http-server"`,
		`"event.restarts":3`,
		`"event.failed":true`,
		`"event.cause.kind":"panic"`,
		"service restarted",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %s: %s", want, output)
		}
	}
}

func TestSlogHandler_ContextIDs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	ctx := ContextWithUserID(ContextWithRequestID(context.Background(), "req-9"), "carol")
	logger.InfoContext(ctx, "closing rows")

	output := buf.String()
	if !strings.Contains(output, `"request_id":"req-9"`) || !strings.Contains(output, `"user_id":"carol"`) {
		t.Errorf("context IDs missing: %s", output)
	}
}

func TestSlogHandler_EmptyGroupAndAttrs(t *testing.T) {
	t.Parallel()

	h := NewSlogHandlerWithLogger(zerolog.New(&bytes.Buffer{}))
	if h.WithGroup("") != h {
		t.Error("WithGroup(\"\") should return the same handler")
	}
	if h.WithAttrs(nil) != h {
		t.Error("WithAttrs(nil) should return the same handler")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSlogLoggerFor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewSlogLoggerFor(NewTestLogger(&buf)).Warn("bridged")
	if !strings.Contains(buf.String(), "bridged") {
		t.Errorf("expected bridged output, got %s", buf.String())
	}
	if NewSlogLogger() == nil {
		t.Error("NewSlogLogger() = nil")
	}
}
