// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assistant exposes the medication assistant over HTTP: query
// handling, suggestion lookup, session management, and health checks.
// Wiring lives in NewService; all request work is delegated to the
// orchestrator pipeline.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ryanthaam/MedExplain/services/assistant/analyze"
	"github.com/ryanthaam/MedExplain/services/assistant/config"
	"github.com/ryanthaam/MedExplain/services/assistant/fetch"
	"github.com/ryanthaam/MedExplain/services/assistant/interaction"
	"github.com/ryanthaam/MedExplain/services/assistant/normalize"
	"github.com/ryanthaam/MedExplain/services/assistant/orchestrator"
	"github.com/ryanthaam/MedExplain/services/assistant/retrieval"
	"github.com/ryanthaam/MedExplain/services/assistant/safety"
	"github.com/ryanthaam/MedExplain/services/assistant/session"
	badgerstore "github.com/ryanthaam/MedExplain/services/assistant/storage/badger"
	"github.com/ryanthaam/MedExplain/services/assistant/translate"
	"github.com/ryanthaam/MedExplain/services/llm"
)

// Service bundles the assistant's components behind one lifecycle.
//
// # Thread Safety
//
// Safe for concurrent use once constructed. Close must only be called
// after the HTTP server has stopped accepting requests.
type Service struct {
	settings config.Settings

	orchestrator *orchestrator.Orchestrator
	normalizer   *normalize.Normalizer
	sessions     *session.ContextManager
	cache        *fetch.ResultCache

	db     *badgerstore.DB // nil when no cache dir is configured
	logger *slog.Logger
}

// NewService wires the full assistant pipeline from settings.
//
// Description:
//
//	Loads the embedded vocabulary and interaction tables, constructs the
//	provider chain (openFDA primary; RxNav and Wikipedia secondaries),
//	and assembles the orchestrator. Optional backends degrade silently:
//	no OpenAI key disables generation, no Weaviate host disables semantic
//	retrieval, no cache dir disables snapshot persistence.
//
// Outputs:
//   - *Service: The wired service. Nil on error.
//   - error: Only infrastructure failures (BadgerDB open, Weaviate client
//     construction) fail construction; missing optional config does not.
func NewService(settings config.Settings, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	normalizer := normalize.NewNormalizer(config.MustLoadDrugAliases(), config.MustLoadDrugClasses())
	sessions := session.NewContextManager(settings.SessionMemorySize, settings.SessionIdleTimeout)
	analyzer := analyze.NewAnalyzer(normalizer, sessions, settings.MaxEntitiesPerQuery, settings.MaxQueryLength, logger)

	var db *badgerstore.DB
	var store fetch.SnapshotStore
	if settings.CacheDir != "" {
		opened, err := badgerstore.Open(settings.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		db = opened
		store = fetch.NewBadgerSnapshotStore(db, 0, logger)
	}

	cache := fetch.NewResultCache(settings.CacheTTL)
	fetcher := fetch.NewMultiSourceFetcher(
		fetch.NewOpenFDAProvider(),
		[]fetch.Provider{fetch.NewRxNavProvider(), fetch.NewWikipediaProvider()},
		fetch.FetcherOptions{
			Cache:            cache,
			Limiter:          fetch.NewRateLimiter(settings.ProviderRateLimit),
			Store:            store,
			PrimaryTimeout:   settings.PrimaryTimeout,
			SecondaryTimeout: settings.SecondaryTimeout,
			Logger:           logger,
		},
	)

	var generator llm.LLMClient
	if settings.OpenAIAPIKey != "" {
		generator = llm.NewOpenAIClientWithConfig(settings.OpenAIAPIKey, settings.OpenAIModel, "")
	}

	var retriever retrieval.Retriever
	if settings.WeaviateHost != "" {
		wr, err := retrieval.NewWeaviateRetriever(settings.WeaviateHost, settings.WeaviateScheme, logger)
		if err != nil {
			return nil, fmt.Errorf("construct retriever: %w", err)
		}
		retriever = wr
	}

	var translator *translate.Translator
	if jargon, err := config.LoadJargonTable(); err != nil {
		logger.Warn("jargon table unavailable, plain-English pass disabled",
			slog.String("error", err.Error()))
	} else {
		translator = translate.NewTranslator(jargon, generator, logger)
	}

	orch := orchestrator.NewOrchestrator(orchestrator.Options{
		Analyzer:        analyzer,
		Fetcher:         fetcher,
		Interactions:    interaction.NewAnalyzer(config.MustLoadInteractionTable(), config.MustLoadDrugClasses()),
		Filter:          safety.NewFilter(),
		Advisor:         safety.NewDosageAdvisor(config.MustLoadDosageTable()),
		Normalizer:      normalizer,
		Translator:      translator,
		Retriever:       retriever,
		Generator:       generator,
		GenerateTimeout: settings.GenerateTimeout,
		RetrievalK:      settings.RetrievalK,
		MaxConcurrent:   settings.MaxEntitiesPerQuery,
		Logger:          logger,
	})

	return &Service{
		settings:     settings,
		orchestrator: orch,
		normalizer:   normalizer,
		sessions:     sessions,
		cache:        cache,
		db:           db,
		logger:       logger,
	}, nil
}

// StartBackground launches the cache sweeper. It exits when ctx is
// canceled.
func (s *Service) StartBackground(ctx context.Context) {
	go s.cache.StartSweeper(ctx, s.settings.CacheSweepInterval)
}

// Close releases persistent resources.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
