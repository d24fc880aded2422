// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safety

import (
	"strings"
	"testing"
)

func TestCheck_DangerousQueriesRefused(t *testing.T) {
	f := NewFilter()

	queries := []string{
		"what is the lethal dose of acetaminophen",
		"how much ibuprofen to overdose",
		"how to get high on oxycodone",
	}
	for _, q := range queries {
		result := f.Check(q)
		if result.Safe {
			t.Errorf("Check(%q).Safe = true, want refused", q)
			continue
		}
		if result.Category != CategoryDangerous {
			t.Errorf("Check(%q).Category = %q, want dangerous", q, result.Category)
		}
		if result.Message == "" {
			t.Errorf("Check(%q) refusal has no message", q)
		}
	}
}

func TestCheck_EmergencyQueriesRefusedWithHotlines(t *testing.T) {
	f := NewFilter()

	result := f.Check("I think my dad took an overdose of his medication")
	if result.Safe {
		t.Fatal("emergency query passed the filter")
	}
	if result.Category != CategoryEmergency {
		t.Errorf("category = %q, want emergency", result.Category)
	}
	if !strings.Contains(result.Message, "911") {
		t.Errorf("emergency refusal should point to 911: %q", result.Message)
	}
}

func TestCheck_DiagnosisSeekingRefused(t *testing.T) {
	f := NewFilter()

	result := f.Check("do i have diabetes based on these symptoms")
	if result.Safe {
		t.Fatal("diagnosis query passed the filter")
	}
	if result.Category != CategoryDiagnosis {
		t.Errorf("category = %q, want diagnosis", result.Category)
	}
}

// Dangerous intent outranks the emergency tier when both match.
func TestCheck_DangerousOutranksEmergency(t *testing.T) {
	f := NewFilter()

	result := f.Check("lethal dose overdose")
	if result.Category != CategoryDangerous {
		t.Errorf("category = %q, want dangerous", result.Category)
	}
}

func TestCheck_SafeQueriesClassified(t *testing.T) {
	f := NewFilter()

	cases := []struct {
		query string
		want  Category
	}{
		{"what are the side effects of ibuprofen", CategorySideEffects},
		{"can I take ibuprofen together with warfarin", CategoryInteractions},
		{"what dose of tylenol is typical", CategoryDosage},
		{"should I avoid aspirin with a stomach ulcer", CategoryContraindications},
		{"tell me about metformin", CategoryGeneralInfo},
	}
	for _, tc := range cases {
		result := f.Check(tc.query)
		if !result.Safe {
			t.Errorf("Check(%q) refused, want safe", tc.query)
			continue
		}
		if result.Category != tc.want {
			t.Errorf("Check(%q).Category = %q, want %q", tc.query, result.Category, tc.want)
		}
	}
}

func TestIsSafe_BlocksDangerousOutput(t *testing.T) {
	f := NewFilter()

	if f.IsSafe("The lethal dose of this drug is approximately...") {
		t.Error("dangerous output passed IsSafe")
	}
	if !f.IsSafe("Taking ibuprofen and warfarin together can increase bleeding risk.") {
		t.Error("ordinary interaction answer blocked")
	}
	// Emergency vocabulary legitimately appears in answers.
	if !f.IsSafe("Seek medical attention if you experience a severe allergic reaction.") {
		t.Error("emergency-adjacent answer text blocked")
	}
}

func TestDisclaimerFor(t *testing.T) {
	cases := []struct {
		category Category
		want     string
	}{
		{CategoryDosage, DosageDisclaimer},
		{CategorySideEffects, SafetyDisclaimer},
		{CategoryInteractions, SafetyDisclaimer},
		{CategoryContraindications, SafetyDisclaimer},
		{CategoryEmergency, EmergencyDisclaimer},
		{CategoryGeneralInfo, GeneralDisclaimer},
		{CategoryDangerous, GeneralDisclaimer},
	}
	for _, tc := range cases {
		if got := DisclaimerFor(tc.category); got != tc.want {
			t.Errorf("DisclaimerFor(%q) selected the wrong disclaimer", tc.category)
		}
	}
}
