// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

// Package logging provides centralized zerolog-based structured logging for Tastemap.
//
// The package provides:
//   - A global zerolog logger configured once from main via Init
//   - JSON output for production, console output for development
//   - Context-aware logging with request and user ID propagation
//   - Component loggers handed to engine, cache and store constructors
//   - An slog.Handler bridge for Suture v4 (sutureslog) and slog consumers
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    Timestamp: true,
//	})
//
//	logging.Info().Str("driver", "duckdb").Msg("Store opened")
//	logging.Ctx(ctx).Warn().Int64("item_id", id).Msg("Item has no embedding")
//
//	eng := engine.New(cfg, deps, logging.Component("engine"))
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Int("k", k).Msg("Clustered ratings")  // Correct
//	logging.Info().Int("k", k)                            // WRONG - log not emitted
package logging
