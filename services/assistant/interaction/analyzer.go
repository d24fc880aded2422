// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package interaction evaluates two-drug combinations against an embedded
// knowledge table. Resolution runs in three tiers: an exact pair match, a
// drug-class pattern match, and a conservative fallback for combinations
// the table does not know. Each tier is tagged with its origin so the
// response layer can disclose how much to trust the verdict.
package interaction

import (
	"fmt"
	"strings"

	"github.com/ryanthaam/MedExplain/services/assistant/config"
	"github.com/ryanthaam/MedExplain/services/assistant/normalize"
	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// =============================================================================
// Types
// =============================================================================

// Severity grades the clinical concern of a combination.
type Severity string

const (
	// SeveritySafe means no significant interaction is expected.
	SeveritySafe Severity = "safe"
	// SeverityCaution means the combination carries a known risk and a
	// clinician should be consulted before combining.
	SeverityCaution Severity = "caution"
	// SeverityMonitor means the combination is workable but needs watching.
	SeverityMonitor Severity = "monitor"
	// SeverityUnknown means the table has no information either way.
	SeverityUnknown Severity = "unknown"
)

// Origin records which tier of the knowledge table produced a verdict.
type Origin string

const (
	// OriginKnown: an exact drug-pair entry matched.
	OriginKnown Origin = "known_pair"
	// OriginInferred: a drug-class pattern matched.
	OriginInferred Origin = "class_pattern"
	// OriginGenerated: no entry matched; the conservative default applies.
	OriginGenerated Origin = "generated"
)

// Result is the verdict for one drug pair.
type Result struct {
	DrugA string
	DrugB string

	// Found is false only for the generated fallback tier.
	Found bool

	Severity   Severity
	Origin     Origin
	Kind       string
	Confidence datatypes.Confidence

	// Description is the user-facing explanation of the interaction.
	Description string
	// Advice is the severity-appropriate call to action.
	Advice string
}

// =============================================================================
// Analyzer
// =============================================================================

// Analyzer resolves drug pairs against the embedded interaction table.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type Analyzer struct {
	pairs   map[pairKey]config.PairInteraction
	classes map[pairKey]config.ClassInteraction
	byClass config.DrugClasses
}

// pairKey is an order-normalized drug or class pair.
type pairKey struct{ a, b string }

func keyFor(a, b string) pairKey {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// NewAnalyzer creates an Analyzer from the interaction and class tables.
// Pass nil for either table to use the embedded defaults.
func NewAnalyzer(table *config.InteractionTable, classes config.DrugClasses) *Analyzer {
	if table == nil {
		table = config.MustLoadInteractionTable()
	}
	if classes == nil {
		classes = config.MustLoadDrugClasses()
	}

	pairs := make(map[pairKey]config.PairInteraction, len(table.Pairs))
	for _, p := range table.Pairs {
		pairs[keyFor(p.Drugs[0], p.Drugs[1])] = p
	}
	classPatterns := make(map[pairKey]config.ClassInteraction, len(table.Classes))
	for _, c := range table.Classes {
		classPatterns[keyFor(c.Classes[0], c.Classes[1])] = c
	}

	return &Analyzer{pairs: pairs, classes: classPatterns, byClass: classes}
}

// Analyze returns the verdict for two generic drug names.
//
// # Description
//
// Names are expected to already be normalized to generics; matching is
// case-insensitive and pair order does not matter. Tiers are consulted in
// order: exact pair, class pattern, generated fallback. The fallback is
// deliberately non-reassuring — absence of an entry is not evidence of
// safety.
func (a *Analyzer) Analyze(drugA, drugB string) *Result {
	displayA, displayB := normalize.Title(drugA), normalize.Title(drugB)

	if p, ok := a.pairs[keyFor(drugA, drugB)]; ok {
		return &Result{
			DrugA:       displayA,
			DrugB:       displayB,
			Found:       true,
			Severity:    Severity(p.Severity),
			Origin:      OriginKnown,
			Kind:        p.Kind,
			Confidence:  confidenceFor(p.Kind),
			Description: describe(p.Kind, displayA, displayB),
			Advice:      adviceFor(Severity(p.Severity)),
		}
	}

	classA, okA := a.byClass[strings.ToLower(strings.TrimSpace(drugA))]
	classB, okB := a.byClass[strings.ToLower(strings.TrimSpace(drugB))]
	if okA && okB {
		if c, ok := a.classes[keyFor(classA, classB)]; ok {
			return &Result{
				DrugA:       displayA,
				DrugB:       displayB,
				Found:       true,
				Severity:    Severity(c.Severity),
				Origin:      OriginInferred,
				Kind:        c.Kind,
				Confidence:  datatypes.ConfidenceMedium,
				Description: describe(c.Kind, displayA, displayB),
				Advice:      adviceFor(Severity(c.Severity)),
			}
		}
	}

	return &Result{
		DrugA:      displayA,
		DrugB:      displayB,
		Found:      false,
		Severity:   SeverityUnknown,
		Origin:     OriginGenerated,
		Kind:       "unknown_combination",
		Confidence: datatypes.ConfidenceLow,
		Description: fmt.Sprintf(
			"No specific interaction information is available for %s and %s in my current database. "+
				"However, this doesn't mean they're automatically safe together.",
			displayA, displayB),
		Advice: "Always consult with your doctor or pharmacist before combining medications, " +
			"even if no interactions are known. They can review your complete medication list and health history.",
	}
}

// =============================================================================
// Response Text
// =============================================================================

// describe renders the user-facing explanation for an interaction kind.
func describe(kind, drugA, drugB string) string {
	switch kind {
	case "no_known_interaction":
		return fmt.Sprintf("Yes, %s and %s are generally safe to take together. "+
			"There are no known significant interactions between these medications.", drugA, drugB)
	case "safe_with_caution":
		return fmt.Sprintf("Yes, %s and %s can typically be taken together, but monitor for "+
			"increased side effects. Take the anti-inflammatory with food to reduce stomach irritation.", drugA, drugB)
	case "safe_alternating":
		return fmt.Sprintf("Yes, %s and %s can be taken together and are sometimes recommended "+
			"in alternating doses for better pain control. Space them out by 2-3 hours when possible.", drugA, drugB)
	case "bleeding_risk":
		return fmt.Sprintf("**Caution needed.** %s and %s can increase bleeding risk when taken "+
			"together. Your doctor may need to monitor you more closely or adjust dosages.", drugA, drugB)
	case "increased_side_effects":
		return fmt.Sprintf("**Not recommended.** Taking %s and %s together can increase the risk "+
			"of side effects like stomach problems and kidney issues. Choose one or consult your doctor.", drugA, drugB)
	case "increased_bleeding_gi_risk":
		return fmt.Sprintf("**Caution needed.** %s and %s together increase the risk of stomach "+
			"bleeding and ulcers. Take with food and watch for stomach pain.", drugA, drugB)
	case "excessive_sedation":
		return fmt.Sprintf("**Not recommended without medical supervision.** %s and %s can cause "+
			"dangerous levels of sedation and breathing problems when combined.", drugA, drugB)
	case "reduced_effectiveness":
		return fmt.Sprintf("**Monitor closely.** %s may reduce the effectiveness of %s. "+
			"Your doctor might need to adjust dosages or monitor your response.", drugA, drugB)
	case "kidney_function_concern":
		return "**Monitor kidney function.** This combination can affect kidney function, " +
			"especially if you're dehydrated or elderly. Drink plenty of water."
	case "low_blood_pressure_risk":
		return "**Monitor blood pressure.** This combination can cause blood pressure to drop " +
			"too low. Watch for dizziness or lightheadedness."
	default:
		return fmt.Sprintf("An interaction between %s and %s has been noted.", drugA, drugB)
	}
}

// adviceFor renders the severity-appropriate call to action.
func adviceFor(s Severity) string {
	switch s {
	case SeveritySafe:
		return "You can take these medications as directed by your doctor or the package instructions."
	case SeverityCaution:
		return "Consult your doctor or pharmacist before combining these medications, " +
			"especially if you have other health conditions."
	case SeverityMonitor:
		return "Regular monitoring may be needed when taking these together. " +
			"Keep track of any new symptoms."
	default:
		return "Consult your healthcare provider."
	}
}

// confidenceFor grades exact-pair verdicts. The well-studied kinds carry
// high confidence; the rest are moderate.
func confidenceFor(kind string) datatypes.Confidence {
	switch kind {
	case "no_known_interaction", "bleeding_risk":
		return datatypes.ConfidenceHigh
	default:
		return datatypes.ConfidenceMedium
	}
}
