// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the MedExplain core settings from the environment and
// the embedded knowledge tables (drug aliases, drug classes, interaction
// pairs, dosage guidance) from YAML shipped with the binary.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Defaults for every tunable. Values come from the environment variables
// named in LoadSettings; unset or unparsable values fall back here.
const (
	DefaultPort                = 8080
	DefaultMaxEntitiesPerQuery = 10
	DefaultMaxQueryLength      = 2000
	DefaultSessionMemorySize   = 3
	DefaultSessionIdleTimeout  = 5 * time.Minute
	DefaultCacheTTL            = 15 * time.Minute
	DefaultCacheSweepInterval  = 5 * time.Minute
	DefaultProviderRateLimit   = 30 // requests per minute across providers
	DefaultPrimaryTimeout      = 12 * time.Second
	DefaultSecondaryTimeout    = 4 * time.Second
	DefaultGenerateTimeout     = 15 * time.Second
	DefaultRetrievalK          = 3
)

// Settings holds the runtime configuration for the MedExplain core.
//
// Description:
//
//	One Settings value is built at startup and passed down explicitly —
//	components never read the environment themselves. Session memory,
//	caches, and the rate limiter are sized from here so their lifecycle
//	is owned by whoever constructed them, not by package-level state.
type Settings struct {
	// Port is the HTTP listen port.
	Port int

	// MaxEntitiesPerQuery caps the fan-out of a multi-drug query. Mentions
	// beyond the cap are dropped in textual order and the query is flagged
	// truncated.
	MaxEntitiesPerQuery int

	// MaxQueryLength rejects over-length input before analysis.
	MaxQueryLength int

	// SessionMemorySize is the number of recently mentioned drugs kept per
	// conversation session.
	SessionMemorySize int

	// SessionIdleTimeout expires a session's memory after inactivity.
	SessionIdleTimeout time.Duration

	// CacheTTL bounds the age of merged drug records served from cache.
	CacheTTL time.Duration

	// CacheSweepInterval controls how often expired entries are physically
	// removed. Correctness does not depend on it.
	CacheSweepInterval time.Duration

	// ProviderRateLimit is the number of outbound provider calls admitted
	// per trailing 60 seconds.
	ProviderRateLimit int

	// PrimaryTimeout and SecondaryTimeout bound individual provider calls.
	// Secondary failures are tolerated, so their timeout is short.
	PrimaryTimeout   time.Duration
	SecondaryTimeout time.Duration

	// GenerateTimeout bounds one generation call.
	GenerateTimeout time.Duration

	// RetrievalK is how many document excerpts to retrieve per query.
	RetrievalK int

	// OpenAIAPIKey and OpenAIModel configure the generation backend.
	// An empty key disables generation; the orchestrator degrades to
	// table- and record-based answers.
	OpenAIAPIKey string
	OpenAIModel  string

	// WeaviateHost and WeaviateScheme configure semantic retrieval.
	// An empty host disables retrieval.
	WeaviateHost   string
	WeaviateScheme string

	// CacheDir, when set, enables the persistent BadgerDB snapshot of the
	// result cache so merged records survive restarts.
	CacheDir string
}

// LoadSettings builds Settings from environment variables, applying defaults
// for anything unset.
//
// Recognized variables:
//
//	MEDEXPLAIN_PORT, MEDEXPLAIN_MAX_ENTITIES, MEDEXPLAIN_MAX_QUERY_LENGTH,
//	MEDEXPLAIN_SESSION_MEMORY, MEDEXPLAIN_SESSION_TIMEOUT,
//	MEDEXPLAIN_CACHE_TTL, MEDEXPLAIN_CACHE_SWEEP, MEDEXPLAIN_RATE_LIMIT,
//	MEDEXPLAIN_PRIMARY_TIMEOUT, MEDEXPLAIN_SECONDARY_TIMEOUT,
//	MEDEXPLAIN_GENERATE_TIMEOUT, MEDEXPLAIN_RETRIEVAL_K,
//	MEDEXPLAIN_CACHE_DIR, OPENAI_API_KEY, OPENAI_MODEL,
//	WEAVIATE_HOST, WEAVIATE_SCHEME
//
// Outputs:
//   - Settings: The resolved configuration. Never fails; bad values are
//     logged and replaced with defaults.
func LoadSettings() Settings {
	s := Settings{
		Port:                envInt("MEDEXPLAIN_PORT", DefaultPort),
		MaxEntitiesPerQuery: envInt("MEDEXPLAIN_MAX_ENTITIES", DefaultMaxEntitiesPerQuery),
		MaxQueryLength:      envInt("MEDEXPLAIN_MAX_QUERY_LENGTH", DefaultMaxQueryLength),
		SessionMemorySize:   envInt("MEDEXPLAIN_SESSION_MEMORY", DefaultSessionMemorySize),
		SessionIdleTimeout:  envDuration("MEDEXPLAIN_SESSION_TIMEOUT", DefaultSessionIdleTimeout),
		CacheTTL:            envDuration("MEDEXPLAIN_CACHE_TTL", DefaultCacheTTL),
		CacheSweepInterval:  envDuration("MEDEXPLAIN_CACHE_SWEEP", DefaultCacheSweepInterval),
		ProviderRateLimit:   envInt("MEDEXPLAIN_RATE_LIMIT", DefaultProviderRateLimit),
		PrimaryTimeout:      envDuration("MEDEXPLAIN_PRIMARY_TIMEOUT", DefaultPrimaryTimeout),
		SecondaryTimeout:    envDuration("MEDEXPLAIN_SECONDARY_TIMEOUT", DefaultSecondaryTimeout),
		GenerateTimeout:     envDuration("MEDEXPLAIN_GENERATE_TIMEOUT", DefaultGenerateTimeout),
		RetrievalK:          envInt("MEDEXPLAIN_RETRIEVAL_K", DefaultRetrievalK),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         envStr("OPENAI_MODEL", "gpt-4o-mini"),
		WeaviateHost:        os.Getenv("WEAVIATE_HOST"),
		WeaviateScheme:      envStr("WEAVIATE_SCHEME", "http"),
		CacheDir:            os.Getenv("MEDEXPLAIN_CACHE_DIR"),
	}

	if s.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, generation disabled; answers degrade to record summaries")
	}
	if s.WeaviateHost == "" {
		slog.Info("WEAVIATE_HOST not set, semantic retrieval disabled")
	}
	return s
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer setting, using default",
			slog.String("var", key),
			slog.String("value", v),
			slog.Int("default", fallback),
		)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration setting, using default",
			slog.String("var", key),
			slog.String("value", v),
			slog.String("default", fallback.String()),
		)
		return fallback
	}
	return d
}

