// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package safety screens queries before any retrieval or generation runs
// and supplies the disclaimer attached to every answer. The filter is a
// hard gate: a blocked query short-circuits the whole pipeline and the
// refusal text is returned verbatim. Every answer path, blocked or not,
// passes through this package — no response leaves the service without a
// disclaimer.
package safety

import (
	"regexp"
	"strings"
)

// =============================================================================
// Classification
// =============================================================================

// Category classifies a query for safety handling. Blocked categories
// (Dangerous, Emergency, Diagnosis) get a refusal; the rest select which
// disclaimer accompanies the answer.
type Category string

const (
	CategoryGeneralInfo       Category = "general_info"
	CategoryDosage            Category = "dosage"
	CategorySideEffects       Category = "side_effects"
	CategoryInteractions      Category = "interactions"
	CategoryContraindications Category = "contraindications"
	CategoryEmergency         Category = "emergency"
	CategoryDiagnosis         Category = "diagnosis"
	CategoryDangerous         Category = "dangerous"
)

// Result is the outcome of one safety check.
type Result struct {
	// Safe is false when the query must be refused outright.
	Safe     bool
	Category Category
	// Message holds the refusal text when Safe is false.
	Message string
	// Confidence is the filter's certainty in its classification, 0..1.
	Confidence float64
}

// =============================================================================
// Patterns
// =============================================================================

var dangerousPatterns = compileAll(
	`how much .* to (die|kill|overdose)`,
	`lethal dose`,
	`suicide`,
	`self harm`,
	`how to get high`,
	`recreational use`,
	`abuse`,
	`illegal`,
)

var emergencyPatterns = compileAll(
	`overdose`,
	`poisoning`,
	`emergency`,
	`urgent`,
	`severe reaction`,
	`allergic reaction`,
	`cant breathe`,
	`can't breathe`,
	`chest pain`,
	`heart attack`,
	`stroke`,
)

var diagnosisPatterns = compileAll(
	`do i have`,
	`am i sick`,
	`what's wrong with me`,
	`diagnose`,
	`what disease`,
	`what condition`,
)

var dosagePatterns = compileAll(
	`how much .* should i take`,
	`what dose`,
	`dosage for`,
	`how many pills`,
	`mg per day`,
	`frequency`,
	`how often`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// =============================================================================
// Filter
// =============================================================================

// Filter screens queries against the blocked-content patterns and
// classifies the rest for disclaimer selection.
//
// # Thread Safety
//
// Stateless. Safe for concurrent use.
type Filter struct{}

// NewFilter creates a Filter.
func NewFilter() *Filter { return &Filter{} }

// Check screens a raw query.
//
// # Description
//
// Blocked tiers are evaluated in order of harm: dangerous intent first,
// then emergency indicators, then diagnosis seeking. A match in any tier
// returns Safe=false with the matching refusal text. Queries that clear
// all three tiers are classified into a content category for disclaimer
// selection.
func (f *Filter) Check(query string) Result {
	lower := strings.ToLower(query)

	if matchesAny(dangerousPatterns, lower) {
		return Result{Safe: false, Category: CategoryDangerous, Message: dangerousRefusal, Confidence: 0.95}
	}
	if matchesAny(emergencyPatterns, lower) {
		return Result{Safe: false, Category: CategoryEmergency, Message: emergencyRefusal, Confidence: 0.90}
	}
	if matchesAny(diagnosisPatterns, lower) {
		return Result{Safe: false, Category: CategoryDiagnosis, Message: diagnosisRefusal, Confidence: 0.85}
	}

	return Result{Safe: true, Category: classifySafe(lower), Confidence: 0.80}
}

// IsSafe screens candidate response text before it is returned to the
// user. Only the dangerous-content tier applies here: emergency and
// diagnosis patterns describe question intent and legitimately appear in
// answer text ("seek medical attention for a severe allergic reaction").
func (f *Filter) IsSafe(text string) bool {
	return !matchesAny(dangerousPatterns, strings.ToLower(text))
}

// Refusal is the fixed template substituted for any generated answer that
// fails the output safety check.
const Refusal = "I can't share that response. Part of the generated answer did not pass this " +
	"service's safety review. Please rephrase your question to focus on general medication " +
	"information, or consult your doctor or pharmacist directly."

// classifySafe buckets a safe query into the content category that selects
// its disclaimer.
func classifySafe(lower string) Category {
	if matchesAny(dosagePatterns, lower) {
		return CategoryDosage
	}
	if containsAny(lower, "side effect", "adverse", "reaction") {
		return CategorySideEffects
	}
	if containsAny(lower, "interaction", "combine", "together") {
		return CategoryInteractions
	}
	if containsAny(lower, "contraindication", "should not", "avoid") {
		return CategoryContraindications
	}
	return CategoryGeneralInfo
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// =============================================================================
// Disclaimers
// =============================================================================

// DisclaimerFor returns the disclaimer matching a query's safety category.
func DisclaimerFor(c Category) string {
	switch c {
	case CategoryDosage:
		return DosageDisclaimer
	case CategorySideEffects, CategoryInteractions, CategoryContraindications:
		return SafetyDisclaimer
	case CategoryEmergency:
		return EmergencyDisclaimer
	default:
		return GeneralDisclaimer
	}
}

// GeneralDisclaimer accompanies general drug information answers.
const GeneralDisclaimer = "IMPORTANT DISCLAIMER: This information is for educational purposes only " +
	"and is not medical advice. Always consult your healthcare provider before starting, stopping, " +
	"or changing any medication. This information comes from FDA sources but should not replace " +
	"professional medical consultation."

// DosageDisclaimer accompanies any answer touching on dosing.
const DosageDisclaimer = "DOSAGE WARNING: I cannot provide specific dosing recommendations. " +
	"Medication dosages must be determined by a licensed healthcare provider based on your " +
	"individual medical history, current health status, other medications, and specific condition. " +
	"Taking incorrect doses can be dangerous. Always follow your doctor's instructions and " +
	"prescription labels."

// SafetyDisclaimer accompanies side-effect, interaction, and
// contraindication answers.
const SafetyDisclaimer = "SAFETY INFORMATION: This information about side effects, interactions, " +
	"and contraindications is from FDA sources for educational purposes. Your individual risk " +
	"factors may differ. Always inform your healthcare provider about all medications, supplements, " +
	"and health conditions. Seek immediate medical attention if you experience serious adverse reactions."

// EmergencyDisclaimer accompanies emergency refusals.
const EmergencyDisclaimer = "EMERGENCY DISCLAIMER: If you are experiencing a medical emergency, " +
	"call 911 immediately. Do not rely on this assistant for emergency medical advice. Contact " +
	"emergency services or poison control (1-800-222-1222) for urgent situations."

// =============================================================================
// Refusal Text
// =============================================================================

const dangerousRefusal = "I cannot and will not provide information that could be used for " +
	"self-harm or illegal purposes.\n\n" +
	"If you're having thoughts of self-harm, please reach out for help:\n" +
	"- National Suicide Prevention Lifeline: 988\n" +
	"- Crisis Text Line: Text HOME to 741741\n" +
	"- Emergency Services: 911\n\n" +
	"For legitimate medical questions, please consult with a healthcare professional or rephrase " +
	"your question to focus on general drug information."

const emergencyRefusal = "MEDICAL EMERGENCY WARNING\n\n" +
	"If this is a medical emergency:\n" +
	"- Call 911 immediately\n" +
	"- Contact Poison Control: 1-800-222-1222\n" +
	"- Go to your nearest emergency room\n\n" +
	"I cannot provide emergency medical advice. This appears to be an urgent situation that " +
	"requires immediate professional medical attention.\n\n" +
	"For non-emergency questions about medications, I'm here to help with general drug " +
	"information from FDA sources."

const diagnosisRefusal = "I cannot provide medical diagnoses or determine what medical conditions " +
	"you may have. Only qualified healthcare professionals can diagnose medical conditions through " +
	"proper examination and testing.\n\n" +
	"If you have health concerns:\n" +
	"- Consult your doctor or healthcare provider\n" +
	"- Call a nurse hotline if available through your insurance\n" +
	"- Visit an urgent care center for non-emergency concerns\n" +
	"- Go to the emergency room for serious symptoms\n\n" +
	"I can help you understand general information about medications and their FDA-approved uses, " +
	"but this should not be used for self-diagnosis."
