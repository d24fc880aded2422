// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package interaction

import (
	"strings"
	"testing"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

func TestAnalyze_KnownPairBleedingRisk(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	result := a.Analyze("warfarin", "ibuprofen")
	if !result.Found {
		t.Fatal("known pair not found")
	}
	if result.Origin != OriginKnown {
		t.Errorf("origin = %q, want known_pair", result.Origin)
	}
	if result.Severity != SeverityCaution {
		t.Errorf("severity = %q, want caution", result.Severity)
	}
	if result.Kind != "bleeding_risk" {
		t.Errorf("kind = %q, want bleeding_risk", result.Kind)
	}
	if result.Confidence != datatypes.ConfidenceHigh {
		t.Errorf("confidence = %q, want High", result.Confidence)
	}
	if !strings.Contains(result.Description, "bleeding") {
		t.Errorf("description = %q", result.Description)
	}
}

func TestAnalyze_PairOrderDoesNotMatter(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	forward := a.Analyze("warfarin", "aspirin")
	reverse := a.Analyze("aspirin", "warfarin")

	if forward.Kind != reverse.Kind || forward.Severity != reverse.Severity {
		t.Errorf("asymmetric verdicts: %+v vs %+v", forward, reverse)
	}
}

func TestAnalyze_CaseAndSpacingInsensitive(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	result := a.Analyze("  Warfarin ", "IBUPROFEN")
	if !result.Found || result.Kind != "bleeding_risk" {
		t.Errorf("verdict = %+v, want bleeding_risk hit", result)
	}
}

func TestAnalyze_SafeAlternatingPair(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	result := a.Analyze("acetaminophen", "ibuprofen")
	if result.Severity != SeveritySafe {
		t.Errorf("severity = %q, want safe", result.Severity)
	}
	if !strings.HasPrefix(result.Description, "Yes,") {
		t.Errorf("safe verdict should lead with a direct answer: %q", result.Description)
	}
}

// No exact pair entry exists for naproxen+lisinopril, but their classes
// (nsaid, ace_inhibitor) match a class pattern.
func TestAnalyze_ClassPatternFallback(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	result := a.Analyze("naproxen", "lisinopril")
	if !result.Found {
		t.Fatal("class pattern not applied")
	}
	if result.Origin != OriginInferred {
		t.Errorf("origin = %q, want class_pattern", result.Origin)
	}
	if result.Confidence != datatypes.ConfidenceMedium {
		t.Errorf("confidence = %q, want Medium", result.Confidence)
	}
}

func TestAnalyze_UnknownCombinationIsConservative(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	result := a.Analyze("levothyroxine", "loratadine")
	if result.Found {
		t.Fatalf("unexpected table hit: %+v", result)
	}
	if result.Origin != OriginGenerated {
		t.Errorf("origin = %q, want generated", result.Origin)
	}
	if result.Severity != SeverityUnknown {
		t.Errorf("severity = %q, want unknown", result.Severity)
	}
	if result.Confidence != datatypes.ConfidenceLow {
		t.Errorf("confidence = %q, want Low", result.Confidence)
	}
	if strings.Contains(result.Description, "safe to take together") {
		t.Errorf("generated fallback must not reassure: %q", result.Description)
	}
	if !strings.Contains(result.Advice, "doctor or pharmacist") {
		t.Errorf("advice = %q", result.Advice)
	}
}

func TestAnalyze_DisplayNamesAreTitled(t *testing.T) {
	a := NewAnalyzer(nil, nil)

	result := a.Analyze("warfarin", "ibuprofen")
	if result.DrugA != "Warfarin" || result.DrugB != "Ibuprofen" {
		t.Errorf("display names = %q, %q", result.DrugA, result.DrugB)
	}
}
