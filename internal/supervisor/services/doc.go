// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package services provides suture.Service wrappers for Tastemap components.

Each wrapper implements suture's context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTPServerService wraps *http.Server. ListenAndServe runs in a goroutine
and the server is shut down gracefully when the context is canceled.

PeriodicService runs a maintenance Task on a ticker: the in-memory cache
janitor, Badger value-log GC and the uptime gauge. Failed runs are logged
and counted in tastemap_background_task_runs_total; the service keeps
running.

# Usage

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))
	tree.AddDataService(services.NewPeriodicService(janitor, services.PeriodicConfig{
	    Name:     "cache-janitor",
	    Interval: cfg.Cache.JanitorInterval,
	}, logger))
*/
package services
