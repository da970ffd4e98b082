// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/tastemap/internal/metrics"
)

// Backend is a byte-oriented key/value store with per-key TTL.
type Backend interface {
	// Name labels metrics and logs ("memory", "badger", "redis").
	Name() string

	// Get returns the value for key. Missing or expired keys report ok=false.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys lists the live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// memoryEntry is a cached value with expiration.
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Stats tracks backend performance.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// MemoryBackend is a thread-safe in-process Backend with TTL support.
// Expired entries are dropped on read and by Cleanup.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	statsMu sync.RWMutex
	stats   Stats
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stats:   Stats{LastCleanup: time.Now()},
	}
}

func (m *MemoryBackend) Name() string {
	return "memory"
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		m.record(func(s *Stats) { s.Misses++ })
		return nil, false, nil
	}

	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		m.record(func(s *Stats) { s.Misses++; s.Evictions++ })
		metrics.RecordCacheEviction(m.Name(), "ttl", 1)
		return nil, false, nil
	}

	m.record(func(s *Stats) { s.Hits++ })
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	n := len(m.entries)
	m.mu.Unlock()

	m.record(func(s *Stats) { s.TotalKeys = int64(n) })
	metrics.CacheSize.WithLabelValues(m.Name()).Set(float64(n))
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	n := len(m.entries)
	m.mu.Unlock()

	m.record(func(s *Stats) { s.Evictions += int64(len(keys)); s.TotalKeys = int64(n) })
	metrics.CacheSize.WithLabelValues(m.Name()).Set(float64(n))
	return nil
}

func (m *MemoryBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) && !now.After(e.expiresAt) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Cleanup removes all expired entries and returns how many were dropped.
func (m *MemoryBackend) Cleanup() int {
	now := m.now()
	m.mu.Lock()
	evicted := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			evicted++
		}
	}
	n := len(m.entries)
	m.mu.Unlock()

	m.record(func(s *Stats) {
		s.Evictions += int64(evicted)
		s.TotalKeys = int64(n)
		s.LastCleanup = now
	})
	metrics.CacheSize.WithLabelValues(m.Name()).Set(float64(n))
	metrics.RecordCacheEviction(m.Name(), "ttl", evicted)
	return evicted
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// GetStats returns a snapshot of the backend statistics.
func (m *MemoryBackend) GetStats() Stats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats
}

// HitRate returns the hit rate as a percentage.
func (m *MemoryBackend) HitRate() float64 {
	stats := m.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (m *MemoryBackend) record(fn func(*Stats)) {
	m.statsMu.Lock()
	fn(&m.stats)
	m.statsMu.Unlock()
}
