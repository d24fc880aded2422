// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queriesTotal counts handled queries by type and outcome.
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medexplain",
		Subsystem: "orchestrator",
		Name:      "queries_total",
		Help:      "Handled queries by query type and outcome.",
	}, []string{"type", "outcome"})

	// queryDurationSeconds observes end-to-end handling latency by type.
	queryDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "medexplain",
		Subsystem: "orchestrator",
		Name:      "query_duration_seconds",
		Help:      "End-to-end query handling latency by query type.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"type"})

	// blockedQueriesTotal counts queries refused by the safety filter.
	blockedQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medexplain",
		Subsystem: "orchestrator",
		Name:      "blocked_queries_total",
		Help:      "Queries refused by the safety filter, by category.",
	}, []string{"category"})
)

// recordQuery records one handled query with its latency.
func recordQuery(queryType, outcome string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(queryType, outcome).Inc()
	queryDurationSeconds.WithLabelValues(queryType).Observe(elapsed.Seconds())
}

// recordBlocked records one safety-filter refusal.
func recordBlocked(category string) {
	blockedQueriesTotal.WithLabelValues(category).Inc()
}
