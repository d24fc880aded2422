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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Provider Fetching
// =============================================================================

var (
	// providerCallsTotal counts provider fetch attempts by provider and outcome.
	// Labels: provider (openfda, rxnav, wikipedia), status (ok, error, timeout)
	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medexplain",
		Subsystem: "fetch",
		Name:      "provider_calls_total",
		Help:      "Total provider fetch attempts by provider and status",
	}, []string{"provider", "status"})

	// providerLatencySeconds measures per-provider fetch latency.
	// Labels: provider
	providerLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medexplain",
		Subsystem: "fetch",
		Name:      "provider_latency_seconds",
		Help:      "Provider fetch latency",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
	}, []string{"provider"})

	// cacheEventsTotal counts result cache reads by outcome.
	// Labels: event (hit, miss, expired, stale_served)
	cacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medexplain",
		Subsystem: "fetch",
		Name:      "cache_events_total",
		Help:      "Result cache events by outcome",
	}, []string{"event"})

	// rateLimitedTotal counts fetches denied by the rate limiter.
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medexplain",
		Subsystem: "fetch",
		Name:      "rate_limited_total",
		Help:      "Total fetches denied by the outbound rate limiter",
	})

	// mergeCoverageTotal counts merged records by resulting coverage.
	// Labels: coverage (full, partial, stale, unavailable)
	mergeCoverageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medexplain",
		Subsystem: "fetch",
		Name:      "merge_coverage_total",
		Help:      "Merged drug records by coverage level",
	}, []string{"coverage"})
)

// recordProviderCall records one provider fetch outcome with its latency.
func recordProviderCall(provider, status string, elapsed time.Duration) {
	providerCallsTotal.WithLabelValues(provider, status).Inc()
	providerLatencySeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// recordCacheEvent records one result cache read outcome.
func recordCacheEvent(event string) {
	cacheEventsTotal.WithLabelValues(event).Inc()
}

// recordMergeCoverage records the coverage of one merged record.
func recordMergeCoverage(coverage string) {
	mergeCoverageTotal.WithLabelValues(coverage).Inc()
}

// recordRateLimited records one fetch denied by the rate limiter.
func recordRateLimited() {
	rateLimitedTotal.Inc()
}
