// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fetch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// cacheEntry pairs a merged record with its insertion time.
type cacheEntry struct {
	record     *datatypes.DrugRecord
	insertedAt time.Time
}

// ResultCache is a TTL-bounded memoization of merged drug records, keyed by
// normalized drug name.
//
// Description:
//
//	Correctness rests entirely on the age check in Get: an entry older
//	than the TTL is treated as absent the moment it expires. Physical
//	removal is Sweep's job alone, which the owner runs periodically to
//	bound memory; sweep frequency is a tuning knob, never a correctness
//	requirement. Keeping expired entries physically present until the
//	sweep is what lets GetStale serve them on the degradation path.
//
//	GetStale exists for rate-limit degradation: it returns an expired
//	record so the caller can serve clearly-marked stale data instead of
//	nothing. A record is never refreshed field-by-field — expiry always
//	recomputes the whole merge.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration

	now func() time.Time
}

// NewResultCache creates a ResultCache with the given TTL. A TTL of 0 or
// less uses the 15-minute default.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached record for key if present and fresh.
//
// Outputs:
//   - *datatypes.DrugRecord: The cached record. Nil on miss or expiry.
//   - bool: True only for a fresh hit.
func (c *ResultCache) Get(key string) (*datatypes.DrugRecord, bool) {
	k := cacheKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[k]
	if !ok {
		recordCacheEvent("miss")
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		// Logically evicted. The entry stays physically present until Sweep
		// so GetStale can still serve it on the degradation path.
		recordCacheEvent("expired")
		return nil, false
	}
	recordCacheEvent("hit")
	return entry.record, true
}

// GetStale returns the cached record for key even when expired. Used only
// on the rate-limited degradation path; the returned record must be
// re-marked stale by the caller.
func (c *ResultCache) GetStale(key string) (*datatypes.DrugRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(key)]
	if !ok {
		return nil, false
	}
	return entry.record, true
}

// Put stores a merged record under key with the current timestamp.
func (c *ResultCache) Put(key string, record *datatypes.DrugRecord) {
	if record == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(key)] = cacheEntry{record: record, insertedAt: c.now()}
}

// Sweep physically removes every expired entry and returns how many were
// dropped.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for k, entry := range c.entries {
		if now.Sub(entry.insertedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of physically present entries, expired or not.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartSweeper runs Sweep every interval until ctx is canceled. Run it in
// its own goroutine from the component that owns the cache lifecycle.
func (c *ResultCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				slog.Debug("result cache: swept expired entries",
					slog.Int("removed", removed),
					slog.Int("remaining", c.Len()),
				)
			}
		}
	}
}

// cacheKey normalizes a drug name into a cache key.
func cacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
