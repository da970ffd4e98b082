// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package api provides the HTTP interface of Tastemap.

Routes are served by a chi v5 router:

	GET    /api/v1/health/live
	GET    /api/v1/health/ready
	GET    /api/v1/users/{userID}/ratings
	PUT    /api/v1/users/{userID}/ratings/{itemID}    body: {"rating": 4.5}
	DELETE /api/v1/users/{userID}/ratings/{itemID}
	GET    /api/v1/users/{userID}/recommendations?offset=0&count=20
	POST   /api/v1/users/{userID}/embedding/rebuild
	POST   /api/v1/items                              body: {"items": [...]}
	GET    /api/v1/items/{itemID}/similar?limit=10
	GET    /metrics

Every JSON response uses the APIResponse envelope. Errors carry a
machine-readable code:

	400 VALIDATION_ERROR / BAD_REQUEST    invalid rating, path or query
	404 NOT_FOUND                         unknown rating, item or embedding
	422 NOT_ENOUGH_RATINGS                too few ratings to recommend
	429 TOO_MANY_REQUESTS                 client or retrieval rate limit
	503 SERVICE_UNAVAILABLE               retrieval circuit open, store down
	504 TIMEOUT                           handler deadline exceeded

# Middleware

Applied globally: request ID, real IP, panic recovery, CORS. The /api/v1
group adds Prometheus instrumentation, per-IP rate limiting (go-chi/httprate),
a handler deadline and gzip compression.

Request bodies and query parameters are validated with go-playground/validator
through the internal/validation package.
*/
package api
