// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package middleware provides HTTP middleware for the Tastemap API.

All middleware uses the chi signature func(http.Handler) http.Handler:

  - RequestID: reuses or generates X-Request-ID and stores it in the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge labelled by route pattern
  - Timeout: bounds the request context for the engine call

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(corsOptions))
	r.Use(httprate.Limit(...))
	r.Use(middleware.Timeout(cfg.Server.Timeout))

PrometheusMetrics must run inside the chi router (r.Use) so the route
pattern is available once the handler returns.
*/
package middleware
