// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize maps free-text drug mentions to canonical entities.
// It resolves brand names, misspellings, and international variants via the
// embedded alias table, falling back to fuzzy similarity when no exact
// match exists.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ryanthaam/MedExplain/services/assistant/config"
	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// Similarity thresholds for fuzzy matching. Accept is deliberately strict:
// a wrong canonicalization is worse than an unresolved one, because an
// unresolved mention still reaches the user as a clarification.
const (
	acceptThreshold  = 0.80
	suggestThreshold = 0.60
	maxSuggestions   = 3
)

var nonLetter = regexp.MustCompile(`[^a-z]`)

// Result is the outcome of normalizing one surface form.
//
// Description:
//
//	When Resolved is true, Drug is the canonical entity. When false, Drug
//	carries the cleaned surface form with NeedsDisambiguation set and
//	Suggestions holds the closest known names for caller-driven
//	clarification.
type Result struct {
	Drug        datatypes.Drug
	Resolved    bool
	Suggestions []string
}

// Normalizer resolves drug surface forms against the loaded alias, class,
// and vocabulary tables.
//
// Description:
//
//	Pure over its tables: Normalize has no side effects and two calls with
//	the same input always produce the same output. The tables are built
//	once at construction and never mutated.
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type Normalizer struct {
	aliases config.DrugAliases
	classes config.DrugClasses

	// canonAliases is the reverse index: canonical name -> known aliases.
	canonAliases map[string][]string

	// vocab is every known surface form and canonical name, sorted, for
	// deterministic fuzzy matching and vocabulary scans.
	vocab []string

	// vocabSet mirrors vocab for O(1) membership checks.
	vocabSet map[string]struct{}
}

// NewNormalizer builds a Normalizer from the given tables.
//
// Inputs:
//   - aliases: Surface form -> canonical name table. May be empty.
//   - classes: Canonical name -> class tag table. May be empty.
//
// Outputs:
//   - *Normalizer: Ready to use. Never nil.
func NewNormalizer(aliases config.DrugAliases, classes config.DrugClasses) *Normalizer {
	n := &Normalizer{
		aliases:      aliases,
		classes:      classes,
		canonAliases: make(map[string][]string),
		vocabSet:     make(map[string]struct{}),
	}

	for alias, canonical := range aliases {
		n.canonAliases[canonical] = append(n.canonAliases[canonical], alias)
		n.vocabSet[alias] = struct{}{}
		n.vocabSet[canonical] = struct{}{}
	}
	for canonical := range classes {
		n.vocabSet[canonical] = struct{}{}
	}

	n.vocab = make([]string, 0, len(n.vocabSet))
	for word := range n.vocabSet {
		n.vocab = append(n.vocab, word)
	}
	sort.Strings(n.vocab)
	for _, list := range n.canonAliases {
		sort.Strings(list)
	}
	return n
}

// Normalize resolves one surface form to a canonical drug entity.
//
// Description:
//
//	Lowercases, trims, and strips non-letters, then tries in order: exact
//	alias lookup, exact canonical-name lookup, fuzzy similarity against the
//	full vocabulary. A fuzzy hit is accepted only above acceptThreshold;
//	otherwise the result is unresolved and carries up to maxSuggestions
//	close matches.
//
// Inputs:
//   - surfaceForm: The raw mention text. May be empty.
//
// Outputs:
//   - Result: See type doc. An empty surface form yields an unresolved
//     result with no suggestions.
func (n *Normalizer) Normalize(surfaceForm string) Result {
	cleaned := cleanSurface(surfaceForm)
	if cleaned == "" {
		return Result{Drug: datatypes.Drug{NeedsDisambiguation: true}}
	}

	if canonical, ok := n.aliases[cleaned]; ok {
		return Result{Drug: n.entity(canonical), Resolved: true}
	}
	if _, ok := n.vocabSet[cleaned]; ok {
		// Already a canonical name (or an alias that maps to itself).
		return Result{Drug: n.entity(cleaned), Resolved: true}
	}

	// Fuzzy fallback: rank the vocabulary by similarity ratio.
	best, bestScore := "", 0.0
	for _, word := range n.vocab {
		score := similarity(cleaned, word)
		if score > bestScore {
			best, bestScore = word, score
		}
	}
	if bestScore >= acceptThreshold {
		canonical := best
		if mapped, ok := n.aliases[best]; ok {
			canonical = mapped
		}
		return Result{
			Drug:        n.entity(canonical),
			Resolved:    true,
			Suggestions: n.Suggest(cleaned, maxSuggestions),
		}
	}

	suggestions := n.Suggest(cleaned, maxSuggestions)
	return Result{
		Drug: datatypes.Drug{
			Name:                Title(cleaned),
			NeedsDisambiguation: true,
			Suggestions:         suggestions,
		},
		Suggestions: suggestions,
	}
}

// Suggest returns up to limit canonical names similar to the given surface
// form, best first. Used for "did you mean" clarifications.
func (n *Normalizer) Suggest(surfaceForm string, limit int) []string {
	cleaned := cleanSurface(surfaceForm)
	if cleaned == "" || limit <= 0 {
		return nil
	}

	type scored struct {
		word  string
		score float64
	}
	candidates := make([]scored, 0, 8)
	for _, word := range n.vocab {
		if score := similarity(cleaned, word); score >= suggestThreshold {
			candidates = append(candidates, scored{word, score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	seen := make(map[string]struct{}, limit)
	suggestions := make([]string, 0, limit)
	for _, c := range candidates {
		canonical := c.word
		if mapped, ok := n.aliases[c.word]; ok {
			canonical = mapped
		}
		titled := Title(canonical)
		if _, dup := seen[titled]; dup {
			continue
		}
		seen[titled] = struct{}{}
		suggestions = append(suggestions, titled)
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions
}

// IsKnown reports whether the cleaned surface form is in the vocabulary.
func (n *Normalizer) IsKnown(surfaceForm string) bool {
	_, ok := n.vocabSet[cleanSurface(surfaceForm)]
	return ok
}

// Vocabulary returns the sorted list of every known surface form and
// canonical name. The returned slice must not be mutated.
func (n *Normalizer) Vocabulary() []string {
	return n.vocab
}

// CanonicalNames returns the sorted distinct canonical drug names.
func (n *Normalizer) CanonicalNames() []string {
	set := make(map[string]struct{})
	for _, canonical := range n.aliases {
		set[canonical] = struct{}{}
	}
	for canonical := range n.classes {
		set[canonical] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for canonical := range set {
		names = append(names, Title(canonical))
	}
	sort.Strings(names)
	return names
}

// entity builds the immutable canonical entity for a resolved name.
func (n *Normalizer) entity(canonical string) datatypes.Drug {
	return datatypes.Drug{
		Name:    Title(canonical),
		Aliases: n.canonAliases[canonical],
		Class:   n.classes[canonical],
	}
}

// cleanSurface lowercases, trims, and strips non-letter characters.
func cleanSurface(s string) string {
	return nonLetter.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// Title uppercases the first letter of a single-word drug name.
func Title(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// similarity is a Levenshtein-based ratio in [0, 1]: identical strings score
// 1, disjoint strings approach 0. Comparable in spirit to difflib's
// SequenceMatcher ratio for the short single-word inputs seen here.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with a two-row DP table.
func levenshtein(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
