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
	"sync"
	"time"
)

// RateLimiter implements a sliding window rate limiter over outbound
// provider calls.
//
// Description:
//
//	Maintains the timestamps of admitted requests in the trailing minute.
//	TryAcquire purges expired timestamps, then admits and records the new
//	request only while the window holds fewer than the limit. The
//	check-and-record sequence is atomic under the mutex, so the window
//	never exceeds the limit regardless of caller concurrency.
//
//	A denied acquire has no side effect; callers degrade to cached data
//	rather than blocking for a slot.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window []int64 // timestamps in Unix milliseconds

	now func() time.Time
}

// NewRateLimiter creates a rate limiter admitting at most limit requests
// per trailing 60 seconds. A limit of 0 or less disables limiting.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{limit: limit, now: time.Now}
}

// TryAcquire attempts to admit one request.
//
// Outputs:
//   - bool: True if the request is admitted (and recorded).
//   - time.Duration: If denied, how long until the oldest in-window
//     request expires and a slot opens. Zero if admitted.
func (r *RateLimiter) TryAcquire() (bool, time.Duration) {
	if r.limit <= 0 {
		return true, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	windowStart := now - 60_000

	// Prune expired entries
	pruned := r.window[:0]
	for _, ts := range r.window {
		if ts > windowStart {
			pruned = append(pruned, ts)
		}
	}
	r.window = pruned

	if len(r.window) >= r.limit {
		oldestInWindow := r.window[0]
		retryAfter := time.Duration(oldestInWindow+60_000-now) * time.Millisecond
		return false, retryAfter
	}

	r.window = append(r.window, now)
	return true, 0
}

// InWindow reports how many admitted requests are inside the trailing
// minute. Diagnostic only.
func (r *RateLimiter) InWindow() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	windowStart := r.now().UnixMilli() - 60_000
	count := 0
	for _, ts := range r.window {
		if ts > windowStart {
			count++
		}
	}
	return count
}
