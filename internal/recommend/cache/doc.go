// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

/*
Package cache stores the expensive part of a recommendation pass: the
clustering of a user's rated items and the per-cluster candidate lists for
every evaluated k.

Entries are keyed by user and by a SHA-256 fingerprint of the sorted rated
item IDs, so any rating change produces a new key:

	rec:<escaped user>:<fingerprint>

The k range and per-cluster fetch size are stored inside the entry and
compared on read. An entry older than the TTL (default 1 hour), with a
different k range or fetch size, or without every requested k is deleted and
reported as a miss.

Candidate embeddings are stripped before encoding and must be rehydrated by
the caller after a hit (Entry.CandidateIDs, Entry.Rehydrate). Entries larger
than MaxEntryBytes (default 4 MiB) are not stored. Each user keeps at most
MaxEntriesPerUser (default 3) entries; older ones are dropped on write.

# Backends

  - MemoryBackend: process-local map with TTL, swept by Cleanup
  - BadgerBackend: BadgerDB with native TTL, optional on-disk persistence
  - RedisBackend: shared across instances, SET with expiry and SCAN
  - Nop: disables caching

All cache failures degrade to a miss. Lookups and writes are exported as
tastemap_cache_requests_total and tastemap_cache_writes_total.
*/
package cache
