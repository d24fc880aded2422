// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package translate rewrites medical jargon into plain English. A
// dictionary pass handles the common vocabulary; only text that remains
// dense with clinical terminology after that pass is escalated to a
// generation call, and any generation failure falls back to the
// dictionary-only result. Dosage figures and drug names are never altered.
package translate

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"github.com/ryanthaam/MedExplain/services/assistant/config"
	"github.com/ryanthaam/MedExplain/services/llm"
)

// complexTermPatterns flag clinical terminology the dictionary does not
// cover. More than two hits means the text is still unreadable and worth
// a generation call.
var complexTermPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\w+ology\b`),
	regexp.MustCompile(`(?i)\b\w+itis\b`),
	regexp.MustCompile(`(?i)\b\w+osis\b`),
	regexp.MustCompile(`(?i)\b\w+pathy\b`),
	regexp.MustCompile(`(?i)\b\w+trophy\b`),
	regexp.MustCompile(`(?i)\b\w+genic\b`),
	regexp.MustCompile(`(?i)\b\w+static\b`),
	regexp.MustCompile(`(?i)\bmcg/kg\b`),
	regexp.MustCompile(`(?i)\bμg/ml\b`),
	regexp.MustCompile(`(?i)\bCYP\d+\b`),
}

const translationPromptPrefix = "You are a medical translator that converts complex medical " +
	"language into simple, plain English that anyone can understand.\n\n" +
	"RULES:\n" +
	"1. Use simple, everyday words\n" +
	"2. Explain medical terms in parentheses if needed\n" +
	"3. Keep the same meaning but make it accessible\n" +
	"4. Don't change dosages, drug names, or critical safety information\n" +
	"5. Use \"you\" instead of \"patient\"\n" +
	"6. Break up long sentences\n" +
	"7. Use bullet points for lists when helpful\n\n" +
	"Medical text to translate:\n"

// =============================================================================
// Translator
// =============================================================================

// jargonEntry is one compiled dictionary replacement.
type jargonEntry struct {
	pattern     *regexp.Regexp
	replacement string
	term        string
}

// Translator rewrites medical jargon into plain English.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type Translator struct {
	entries []jargonEntry
	client  llm.LLMClient // may be nil: dictionary-only mode
	logger  *slog.Logger
}

// NewTranslator creates a Translator.
//
// # Inputs
//
//   - table: Jargon dictionary. Pass nil to use the embedded table.
//   - client: Generation backend for dense clinical text. May be nil;
//     the dictionary pass then stands alone.
//   - logger: May be nil.
func NewTranslator(table config.JargonTable, client llm.LLMClient, logger *slog.Logger) *Translator {
	if table == nil {
		table = config.MustLoadJargonTable()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Longest terms first so multi-word phrases are replaced before any
	// of their constituent words.
	terms := make([]string, 0, len(table))
	for term := range table {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	entries := make([]jargonEntry, 0, len(terms))
	for _, term := range terms {
		entries = append(entries, jargonEntry{
			pattern:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`),
			replacement: table[term],
			term:        term,
		})
	}

	return &Translator{entries: entries, client: client, logger: logger}
}

// Translate rewrites medical text into plain English.
//
// # Description
//
// The dictionary pass always runs. If the result still carries more than
// two complex clinical terms and a generation client is configured, the
// text is escalated; on any generation failure the dictionary result is
// returned instead, so Translate never fails.
func (t *Translator) Translate(ctx context.Context, text string) string {
	simplified := t.applyDictionary(text)

	if t.client == nil || !containsComplexTerms(simplified) {
		return simplified
	}

	translated, err := t.client.Generate(ctx, translationPromptPrefix+simplified, llm.GenerationParams{})
	if err != nil {
		t.logger.Warn("jargon translation generation failed, using dictionary result",
			slog.String("error", err.Error()),
		)
		return simplified
	}
	return translated
}

// Preview reports which dictionary terms would be replaced in the text.
func (t *Translator) Preview(text string) map[string]string {
	found := make(map[string]string)
	for _, e := range t.entries {
		if e.pattern.MatchString(text) {
			found[e.term] = e.replacement
		}
	}
	return found
}

// applyDictionary runs the word-bounded replacement pass.
func (t *Translator) applyDictionary(text string) string {
	for _, e := range t.entries {
		text = e.pattern.ReplaceAllString(text, e.replacement)
	}
	return text
}

// containsComplexTerms reports whether more than two clinical-terminology
// patterns still match.
func containsComplexTerms(text string) bool {
	count := 0
	for _, p := range complexTermPatterns {
		count += len(p.FindAllString(text, -1))
		if count > 2 {
			return true
		}
	}
	return false
}
