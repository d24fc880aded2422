// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyze turns raw query text into a classified QueryRecord:
// follow-up references resolved, drug mentions extracted and normalized,
// query type assigned, session memory updated. It performs no network
// calls; everything here runs against in-process tables and state.
package analyze

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ryanthaam/MedExplain/services/assistant/normalize"
	"github.com/ryanthaam/MedExplain/services/assistant/session"
	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// ErrMalformedQuery is returned for input rejected before analysis:
// empty text or text over the configured length limit.
var ErrMalformedQuery = errors.New("analyze: malformed query")

// =============================================================================
// Patterns
// =============================================================================

// interactionKeywords indicate a relationship question. Checked before the
// multi-drug markers: "can I take X and Y together" carries both an "and"
// list marker and a relationship keyword, and the relationship reading is
// the right one.
var interactionKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\binteract`),
	regexp.MustCompile(`(?i)\btogether\b`),
	regexp.MustCompile(`(?i)\bcombin`),
	regexp.MustCompile(`(?i)\bmix(ing|ed)?\b`),
	regexp.MustCompile(`(?i)\btake .+ with\b`),
	regexp.MustCompile(`(?i)\b(safe|ok|okay) .+ with\b`),
	regexp.MustCompile(`(?i)\bwhile (taking|on)\b`),
}

// multiDrugMarkers indicate a list of drugs rather than prose.
var multiDrugMarkers = []*regexp.Regexp{
	regexp.MustCompile(`\n`),
	regexp.MustCompile(`,\s*\S`),
	regexp.MustCompile(`\d+\.\s*\S`),
	regexp.MustCompile(`•\s*\S`),
	regexp.MustCompile(`(?i)\band\b`),
}

// dosageKeywords route dose-frequency questions to the dosage branch.
var dosageKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdos(e|age|ing)\b`),
	regexp.MustCompile(`(?i)\bhow much\b`),
	regexp.MustCompile(`(?i)\bhow often\b`),
	regexp.MustCompile(`(?i)\bhow many\b`),
	regexp.MustCompile(`(?i)\bper day\b`),
	regexp.MustCompile(`(?i)\bdaily\b`),
	regexp.MustCompile(`(?i)\bmaximum\b`),
}

// wordToken matches candidate mention words. Three letters is the shortest
// meaningful drug token in the vocabulary.
var wordToken = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)

// questionPrefix strips leading question boilerplate before list splitting.
var questionPrefix = regexp.MustCompile(`(?i)^(what does?|tell me about|information about|what is|explain)\s+`)

// drugSuffixes mark words that look pharmacological even when the
// vocabulary has never seen them.
var drugSuffixes = []string{"ine", "ol", "an", "il", "one", "ate", "ide"}

// stopWords are never drug mentions regardless of shape.
var stopWords = map[string]struct{}{
	"what": {}, "does": {}, "the": {}, "side": {}, "effects": {}, "uses": {},
	"about": {}, "are": {}, "tell": {}, "how": {}, "can": {}, "will": {},
	"should": {}, "would": {}, "could": {}, "have": {}, "that": {}, "this": {},
	"they": {}, "them": {}, "with": {}, "from": {}, "take": {}, "taking": {},
	"medication": {}, "medications": {}, "medicine": {}, "drug": {}, "drugs": {},
	"pill": {}, "pills": {}, "tablet": {}, "used": {}, "help": {}, "need": {},
	"want": {}, "times": {}, "day": {}, "daily": {}, "much": {}, "many": {},
	"often": {}, "long": {}, "safe": {}, "dangerous": {}, "good": {}, "bad": {},
	"together": {}, "interact": {}, "interaction": {}, "interactions": {},
	"combine": {}, "combining": {}, "and": {}, "information": {}, "explain": {},
	"dose": {}, "dosage": {}, "maximum": {}, "okay": {}, "while": {},
}

// =============================================================================
// Analyzer
// =============================================================================

// Analyzer classifies queries and extracts drug entities.
//
// # Thread Safety
//
// Safe for concurrent use: the normalizer is immutable and the session
// manager carries its own locking.
type Analyzer struct {
	normalizer  *normalize.Normalizer
	sessions    *session.ContextManager
	maxEntities int
	maxQueryLen int
	logger      *slog.Logger
}

// NewAnalyzer creates an Analyzer.
//
// # Inputs
//
//   - normalizer: Must not be nil.
//   - sessions: Must not be nil.
//   - maxEntities: Fan-out cap per query. Pass 0 for the default (10).
//   - maxQueryLen: Input length limit in bytes. Pass 0 for the default (2000).
func NewAnalyzer(normalizer *normalize.Normalizer, sessions *session.ContextManager, maxEntities, maxQueryLen int, logger *slog.Logger) *Analyzer {
	if normalizer == nil || sessions == nil {
		panic("NewAnalyzer: normalizer and sessions must not be nil")
	}
	if maxEntities <= 0 {
		maxEntities = 10
	}
	if maxQueryLen <= 0 {
		maxQueryLen = 2000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		normalizer:  normalizer,
		sessions:    sessions,
		maxEntities: maxEntities,
		maxQueryLen: maxQueryLen,
		logger:      logger,
	}
}

// Analyze turns raw text into a classified QueryRecord.
//
// # Description
//
// Steps: validate length, resolve follow-up references against session
// memory, extract and normalize drug mentions in textual order, cap the
// entity count, classify, and remember resolved entities for the next
// turn. Unresolvable mentions are kept with NeedsDisambiguation set so
// the orchestrator can surface suggestions instead of dropping them.
//
// # Outputs
//
//   - *datatypes.QueryRecord: Never nil when error is nil.
//   - error: ErrMalformedQuery for empty or over-length input.
func (a *Analyzer) Analyze(rawText, sessionID string) (*datatypes.QueryRecord, error) {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return nil, fmt.Errorf("empty query: %w", ErrMalformedQuery)
	}
	if len(trimmed) > a.maxQueryLen {
		return nil, fmt.Errorf("query exceeds %d bytes: %w", a.maxQueryLen, ErrMalformedQuery)
	}

	resolved, wasFollowUp := a.sessions.Resolve(trimmed, sessionID)
	if wasFollowUp {
		a.logger.Debug("follow-up resolved",
			slog.String("session_id", sessionID),
			slog.String("resolved", resolved),
		)
	}

	drugs, truncated := a.extractDrugs(resolved)
	queryType := classify(resolved, drugs)

	record := &datatypes.QueryRecord{
		RawText:      trimmed,
		ResolvedText: resolved,
		Type:         queryType,
		Drugs:        drugs,
		Truncated:    truncated,
		SessionID:    sessionID,
		Timestamp:    time.Now(),
	}

	if len(drugs) > 0 {
		a.sessions.Remember(drugs, sessionID)
	}

	a.logger.Debug("query analyzed",
		slog.String("session_id", sessionID),
		slog.String("type", string(queryType)),
		slog.Int("drug_count", len(drugs)),
		slog.Bool("truncated", truncated),
	)
	return record, nil
}

// extractDrugs finds drug mentions in a single pass over the text, so
// the returned slice preserves mention order regardless of whether the
// vocabulary knows each word. An unknown word that passes the shape
// heuristic goes through fuzzy resolution, which may still land it on a
// known generic; otherwise it is kept as a needs-disambiguation entity.
// Deduped by canonical name, capped at maxEntities.
func (a *Analyzer) extractDrugs(text string) ([]datatypes.Drug, bool) {
	cleaned := questionPrefix.ReplaceAllString(text, "")
	words := wordToken.FindAllString(cleaned, -1)

	var drugs []datatypes.Drug
	seen := make(map[string]struct{})

	add := func(d datatypes.Drug) {
		key := strings.ToLower(d.Name)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		drugs = append(drugs, d)
	}

	for _, word := range words {
		lower := strings.ToLower(word)
		if _, stop := stopWords[lower]; stop {
			continue
		}
		if a.normalizer.IsKnown(lower) || looksLikeDrug(lower) {
			add(a.normalizer.Normalize(lower).Drug)
		}
	}

	if len(drugs) > a.maxEntities {
		return drugs[:a.maxEntities], true
	}
	return drugs, false
}

// looksLikeDrug applies the shape heuristic for words outside the
// vocabulary: a pharmacological suffix, or six-plus alphabetic characters.
func looksLikeDrug(word string) bool {
	if len(word) < 4 {
		return false
	}
	for _, suffix := range drugSuffixes {
		if strings.HasSuffix(word, suffix) {
			return true
		}
	}
	return len(word) >= 6
}

// classify assigns the query type from the resolved text and extracted
// entities. Relationship keywords outrank list markers; dosage keywords
// outrank the single-drug default.
func classify(text string, drugs []datatypes.Drug) datatypes.QueryType {
	if len(drugs) == 0 {
		return datatypes.QueryOutOfScope
	}
	if len(drugs) >= 2 && matchesAny(interactionKeywords, text) {
		return datatypes.QueryInteraction
	}
	if len(drugs) >= 2 && matchesAny(multiDrugMarkers, text) {
		return datatypes.QueryMultiDrug
	}
	if len(drugs) >= 3 {
		// Three recognized drugs is a list even without markers.
		return datatypes.QueryMultiDrug
	}
	if matchesAny(dosageKeywords, text) {
		return datatypes.QueryDosage
	}
	if len(drugs) >= 2 {
		return datatypes.QueryMultiDrug
	}
	return datatypes.QuerySingleDrug
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
