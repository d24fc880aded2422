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

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

func TestIsDosageQuery(t *testing.T) {
	adv := NewDosageAdvisor(nil)

	positives := []string{
		"can i take ibuprofen daily",
		"how much tylenol per day",
		"is it safe to take aspirin every day",
		"what is the maximum dose of naproxen",
		"how often should i take metformin",
		"can i take advil 3 times a day",
		"am i taking too much acetaminophen",
	}
	for _, q := range positives {
		if !adv.IsDosageQuery(q) {
			t.Errorf("IsDosageQuery(%q) = false, want true", q)
		}
	}

	negatives := []string{
		"what are the side effects of ibuprofen",
		"does warfarin interact with aspirin",
		"tell me about semaglutide",
	}
	for _, q := range negatives {
		if adv.IsDosageQuery(q) {
			t.Errorf("IsDosageQuery(%q) = true, want false", q)
		}
	}
}

func TestAdvise_NoDrugIdentified(t *testing.T) {
	adv := NewDosageAdvisor(nil)

	resp := adv.Advise("", nil, "how many pills should i take")
	if resp.Answer != generalDosageAnswer {
		t.Error("expected the general dosage answer when no drug is identified")
	}
	if resp.Confidence != datatypes.ConfidenceHigh {
		t.Errorf("confidence = %q, want high", resp.Confidence)
	}
	if !resp.SafetyWarning {
		t.Error("SafetyWarning not set")
	}
	if resp.Disclaimer != DosageDisclaimer {
		t.Error("dosage disclaimer not attached")
	}
	if !strings.Contains(resp.Answer, "Poison Control") {
		t.Error("general dosage answer should point to Poison Control")
	}
}

func TestAdvise_KnownDrug(t *testing.T) {
	adv := NewDosageAdvisor(nil)

	resp := adv.Advise("ibuprofen", nil, "how much ibuprofen per day")
	if resp.Confidence != datatypes.ConfidenceMedium {
		t.Errorf("confidence = %q, want medium", resp.Confidence)
	}
	if !resp.SafetyWarning {
		t.Error("SafetyWarning not set")
	}
	if resp.DrugCount != 1 {
		t.Errorf("DrugCount = %d, want 1", resp.DrugCount)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("len(Sources) = %d, want 1", len(resp.Sources))
	}
	src := resp.Sources[0]
	if src.Drug != "Ibuprofen" || src.Section != "General Dosage Information" {
		t.Errorf("unexpected source: %+v", src)
	}
	if !strings.Contains(resp.Answer, "Ibuprofen") {
		t.Error("answer should name the drug with display casing")
	}
	if !strings.Contains(resp.Answer, "Typical Adult Dose") {
		t.Error("answer should include the guidance table dose line")
	}
	if resp.Disclaimer != DosageDisclaimer {
		t.Error("dosage disclaimer not attached")
	}
}

func TestAdvise_KnownDrugKeyNormalization(t *testing.T) {
	adv := NewDosageAdvisor(nil)

	resp := adv.Advise("  Acetaminophen ", nil, "max daily acetaminophen")
	if resp.Confidence != datatypes.ConfidenceMedium {
		t.Errorf("table lookup should be case and space insensitive, got confidence %q", resp.Confidence)
	}
}

func TestAdvise_UnknownDrug(t *testing.T) {
	adv := NewDosageAdvisor(nil)

	resp := adv.Advise("floradrine", []string{"Fluoxetine", "Loratadine"}, "how much floradrine per day")
	if resp.Confidence != datatypes.ConfidenceHigh {
		t.Errorf("confidence = %q, want high", resp.Confidence)
	}
	if !strings.Contains(resp.Answer, "DOSAGE SAFETY WARNING") {
		t.Error("unknown drug should get the refusal answer")
	}
	if !strings.Contains(resp.Answer, "**Did you mean:** Fluoxetine, Loratadine?") {
		t.Error("suggestions not appended to the refusal")
	}
	if len(resp.Sources) != 0 {
		t.Errorf("unknown drug response should carry no sources, got %d", len(resp.Sources))
	}
}

func TestAdvise_UnknownDrugNoSuggestions(t *testing.T) {
	adv := NewDosageAdvisor(nil)

	resp := adv.Advise("floradrine", nil, "how much floradrine per day")
	if strings.Contains(resp.Answer, "Did you mean") {
		t.Error("no suggestions given, none should be rendered")
	}
}
