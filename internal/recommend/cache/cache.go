// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tastemap/internal/metrics"
	"github.com/tomtom215/tastemap/internal/recommend"
)

const keyPrefix = "rec:"

// Defaults for Options.
const (
	DefaultTTL               = time.Hour
	DefaultMaxEntriesPerUser = 3
	DefaultMaxEntryBytes     = 4 << 20
)

// ErrEntryTooLarge is returned by Set when the encoded entry exceeds MaxEntryBytes.
var ErrEntryTooLarge = errors.New("cache entry too large")

// Cache stores per-k clusterings and candidates for a rated set.
type Cache interface {
	Get(ctx context.Context, key Key) (*Entry, bool)
	Set(ctx context.Context, key Key, entry *Entry) error
	Invalidate(ctx context.Context, userID string) error
}

// Key identifies one cached candidate set.
type Key struct {
	UserID      string
	Fingerprint string
	KValues     []int
	FetchSize   int

	// Required lists the k values an entry must hold to count as a hit.
	Required []int
}

// NewKey builds a key from the user's sorted rated item IDs.
func NewKey(userID string, sortedIDs []int64, kValues []int, fetchSize int, required []int) Key {
	return Key{
		UserID:      recommend.UserOrAnonymous(userID),
		Fingerprint: Fingerprint(sortedIDs),
		KValues:     append([]int(nil), kValues...),
		FetchSize:   fetchSize,
		Required:    append([]int(nil), required...),
	}
}

// Fingerprint is the hex SHA-256 of the comma-joined sorted IDs.
func Fingerprint(sortedIDs []int64) string {
	sum := sha256.Sum256([]byte(recommend.JoinIDs(sortedIDs)))
	return hex.EncodeToString(sum[:])
}

// StorageKey is the backend key: rec:<user>:<fingerprint>.
func (k Key) StorageKey() string {
	return userPrefix(k.UserID) + k.Fingerprint
}

// userPrefix escapes the user ID so that one user's prefix never matches
// another user's keys and never contains glob metacharacters.
func userPrefix(userID string) string {
	return keyPrefix + url.QueryEscape(recommend.UserOrAnonymous(userID)) + ":"
}

// Plan is the cached clustering and candidates for one k.
type Plan struct {
	Centroids  [][]float64             `json:"centroids"`
	Candidates [][]recommend.Candidate `json:"candidates"`
}

// Entry is the cached value.
type Entry struct {
	KValues   []int         `json:"k_values"`
	FetchSize int           `json:"fetch_size"`
	CreatedAt time.Time     `json:"created_at"`
	Plans     map[int]*Plan `json:"plans"`
}

// Options configures a BackendCache.
type Options struct {
	TTL               time.Duration
	MaxEntriesPerUser int
	MaxEntryBytes     int
}

func DefaultOptions() Options {
	return Options{
		TTL:               DefaultTTL,
		MaxEntriesPerUser: DefaultMaxEntriesPerUser,
		MaxEntryBytes:     DefaultMaxEntryBytes,
	}
}

// BackendCache implements Cache over a byte-oriented Backend.
type BackendCache struct {
	backend Backend
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

var _ Cache = (*BackendCache)(nil)

func New(backend Backend, opts Options, logger *zerolog.Logger) *BackendCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntriesPerUser <= 0 {
		opts.MaxEntriesPerUser = DefaultMaxEntriesPerUser
	}
	if opts.MaxEntryBytes <= 0 {
		opts.MaxEntryBytes = DefaultMaxEntryBytes
	}
	return &BackendCache{
		backend: backend,
		opts:    opts,
		logger:  logger.With().Str("component", "recommend_cache").Str("backend", backend.Name()).Logger(),
		now:     time.Now,
	}
}

// Backend returns the underlying backend.
func (c *BackendCache) Backend() Backend {
	return c.backend
}

// Get returns the entry for key when it is fresh and matches the key's
// k range, fetch size and required k values. Stale or mismatched entries
// are deleted.
func (c *BackendCache) Get(ctx context.Context, key Key) (*Entry, bool) {
	name := c.backend.Name()
	storageKey := key.StorageKey()

	raw, ok, err := c.backend.Get(ctx, storageKey)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", storageKey).Msg("Cache read failed")
		metrics.RecordCacheLookup(name, "error")
		return nil, false
	}
	if !ok {
		metrics.RecordCacheLookup(name, "miss")
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.discard(ctx, storageKey, "corrupt")
		return nil, false
	}
	if c.now().Sub(entry.CreatedAt) > c.opts.TTL {
		c.discard(ctx, storageKey, "expired")
		return nil, false
	}
	if !entry.matches(key) {
		c.discard(ctx, storageKey, "mismatch")
		return nil, false
	}

	metrics.RecordCacheLookup(name, "hit")
	return &entry, true
}

func (e *Entry) matches(key Key) bool {
	if e.FetchSize != key.FetchSize || len(e.KValues) != len(key.KValues) {
		return false
	}
	for i := range e.KValues {
		if e.KValues[i] != key.KValues[i] {
			return false
		}
	}
	for _, k := range key.Required {
		if p, ok := e.Plans[k]; !ok || p == nil || len(p.Candidates) != len(p.Centroids) {
			return false
		}
	}
	return true
}

func (c *BackendCache) discard(ctx context.Context, storageKey, reason string) {
	metrics.RecordCacheLookup(c.backend.Name(), reason)
	if err := c.backend.Delete(ctx, storageKey); err != nil {
		c.logger.Warn().Err(err).Str("key", storageKey).Msg("Failed to delete stale cache entry")
		return
	}
	metrics.RecordCacheEviction(c.backend.Name(), reason, 1)
}

// Set stores entry with candidate embeddings stripped, then trims the
// user's entries to the newest MaxEntriesPerUser.
func (c *BackendCache) Set(ctx context.Context, key Key, entry *Entry) error {
	name := c.backend.Name()

	stored := stripEmbeddings(entry)
	stored.KValues = append([]int(nil), key.KValues...)
	stored.FetchSize = key.FetchSize
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = c.now().UTC()
	}

	data, err := json.Marshal(stored)
	if err != nil {
		metrics.RecordCacheWrite(name, "error")
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if len(data) > c.opts.MaxEntryBytes {
		metrics.RecordCacheWrite(name, "oversize")
		c.logger.Debug().
			Int("bytes", len(data)).
			Int("limit", c.opts.MaxEntryBytes).
			Str("user_id", key.UserID).
			Msg("Skipping oversized cache entry")
		return fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, len(data))
	}

	if err := c.backend.Set(ctx, key.StorageKey(), data, c.opts.TTL); err != nil {
		metrics.RecordCacheWrite(name, "error")
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	metrics.RecordCacheWrite(name, "ok")

	if err := c.trimUser(ctx, key.UserID); err != nil {
		c.logger.Warn().Err(err).Str("user_id", key.UserID).Msg("Failed to trim cache entries")
	}
	return nil
}

type entryStamp struct {
	CreatedAt time.Time `json:"created_at"`
}

func (c *BackendCache) trimUser(ctx context.Context, userID string) error {
	keys, err := c.backend.Keys(ctx, userPrefix(userID))
	if err != nil {
		return err
	}
	if len(keys) <= c.opts.MaxEntriesPerUser {
		return nil
	}

	type stamped struct {
		key       string
		createdAt time.Time
	}
	entries := make([]stamped, 0, len(keys))
	for _, k := range keys {
		raw, ok, err := c.backend.Get(ctx, k)
		if err != nil || !ok {
			continue
		}
		var s entryStamp
		// Undecodable entries sort as oldest.
		_ = json.Unmarshal(raw, &s)
		entries = append(entries, stamped{key: k, createdAt: s.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].createdAt.Equal(entries[j].createdAt) {
			return entries[i].createdAt.After(entries[j].createdAt)
		}
		return entries[i].key < entries[j].key
	})
	if len(entries) <= c.opts.MaxEntriesPerUser {
		return nil
	}

	stale := make([]string, 0, len(entries)-c.opts.MaxEntriesPerUser)
	for _, e := range entries[c.opts.MaxEntriesPerUser:] {
		stale = append(stale, e.key)
	}
	if err := c.backend.Delete(ctx, stale...); err != nil {
		return err
	}
	metrics.RecordCacheEviction(c.backend.Name(), "per_user_limit", len(stale))
	return nil
}

// Invalidate removes every entry of userID.
func (c *BackendCache) Invalidate(ctx context.Context, userID string) error {
	keys, err := c.backend.Keys(ctx, userPrefix(userID))
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}
	metrics.RecordCacheEviction(c.backend.Name(), "invalidate", len(keys))
	return nil
}

func stripEmbeddings(e *Entry) *Entry {
	out := &Entry{
		CreatedAt: e.CreatedAt,
		Plans:     make(map[int]*Plan, len(e.Plans)),
	}
	for k, p := range e.Plans {
		if p == nil {
			continue
		}
		lists := make([][]recommend.Candidate, len(p.Candidates))
		for i, list := range p.Candidates {
			lists[i] = make([]recommend.Candidate, len(list))
			for j := range list {
				lists[i][j] = list[j]
				lists[i][j].Embedding = nil
			}
		}
		out.Plans[k] = &Plan{Centroids: p.Centroids, Candidates: lists}
	}
	return out
}

// CandidateIDs returns every distinct candidate item ID in the entry, in
// ascending order. Callers use it to rehydrate embeddings after a hit.
func (e *Entry) CandidateIDs() []int64 {
	seen := make(map[int64]struct{})
	for _, p := range e.Plans {
		if p == nil {
			continue
		}
		for _, list := range p.Candidates {
			for _, c := range list {
				seen[c.ItemID] = struct{}{}
			}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Rehydrate fills candidate embeddings from embeddings. Candidates with no
// embedding in the map are dropped; the number dropped is returned.
func (e *Entry) Rehydrate(embeddings map[int64][]float64) int {
	dropped := 0
	for _, p := range e.Plans {
		if p == nil {
			continue
		}
		for i, list := range p.Candidates {
			kept := list[:0]
			for _, c := range list {
				vec, ok := embeddings[c.ItemID]
				if !ok {
					dropped++
					continue
				}
				c.Embedding = vec
				kept = append(kept, c)
			}
			p.Candidates[i] = kept
		}
	}
	return dropped
}

// Nop never stores anything.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, Key) (*Entry, bool)  { return nil, false }
func (Nop) Set(context.Context, Key, *Entry) error   { return nil }
func (Nop) Invalidate(context.Context, string) error { return nil }

// KString renders k values for log fields.
func KString(ks []int) string {
	b := make([]byte, 0, len(ks)*3)
	for i, k := range ks {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(k), 10)
	}
	return string(b)
}
