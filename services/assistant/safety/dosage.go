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
	"fmt"
	"strings"

	"github.com/ryanthaam/MedExplain/services/assistant/config"
	"github.com/ryanthaam/MedExplain/services/assistant/normalize"
	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// =============================================================================
// Dosage Advisor
// =============================================================================
//
// Dosage questions never reach retrieval or generation: they are answered
// entirely from the embedded guidance table, with safety framing. The table
// is educational-only — the advisor refuses to state personalized doses and
// every response carries the dosage disclaimer.

// dosageQueryPatterns detect questions about dose amount or frequency that
// the general dosage patterns in the filter miss.
var dosageQueryPatterns = compileAll(
	`can i take .* daily`,
	`how often .* take`,
	`how much .* per day`,
	`daily dose`,
	`safe to take .* every day`,
	`long term use`,
	`chronic use`,
	`daily usage`,
	`take .* regularly`,
	`take .* \d+ times`,
	`\d+ times .* day`,
	`take .* multiple times`,
	`too much`,
	`maximum dose`,
)

// DosageAdvisor answers dose-frequency questions from the embedded
// guidance table with mandatory safety framing.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type DosageAdvisor struct {
	table config.DosageTable
}

// NewDosageAdvisor creates a DosageAdvisor. Pass nil to use the embedded
// guidance table.
func NewDosageAdvisor(table config.DosageTable) *DosageAdvisor {
	if table == nil {
		table = config.MustLoadDosageTable()
	}
	return &DosageAdvisor{table: table}
}

// IsDosageQuery reports whether the question asks about dose amount,
// frequency, or long-term use.
func (d *DosageAdvisor) IsDosageQuery(question string) bool {
	lower := strings.ToLower(question)
	return matchesAny(dosageQueryPatterns, lower) || matchesAny(dosagePatterns, lower)
}

// Advise builds the dosage response for an already-resolved generic drug
// name. Pass empty drug for a query where no drug could be identified;
// suggestions (if any) are appended to the unknown-drug response.
//
// # Outputs
//
//   - *datatypes.StructuredResponse: Complete answer with disclaimer set.
//     Never nil.
func (d *DosageAdvisor) Advise(drug string, suggestions []string, question string) *datatypes.StructuredResponse {
	if drug == "" {
		return &datatypes.StructuredResponse{
			Answer:        generalDosageAnswer,
			Confidence:    datatypes.ConfidenceHigh,
			SafetyWarning: true,
			Disclaimer:    DosageDisclaimer,
			Query:         question,
		}
	}

	key := strings.ToLower(strings.TrimSpace(drug))
	display := normalize.Title(drug)

	guidance, ok := d.table[key]
	if !ok {
		return &datatypes.StructuredResponse{
			Answer:        unknownDrugDosageAnswer(display, suggestions),
			Confidence:    datatypes.ConfidenceHigh,
			SafetyWarning: true,
			Disclaimer:    DosageDisclaimer,
			Query:         question,
		}
	}

	return &datatypes.StructuredResponse{
		Answer:        knownDrugDosageAnswer(display, guidance),
		Confidence:    datatypes.ConfidenceMedium,
		SafetyWarning: true,
		Sources: []datatypes.Source{
			{Drug: display, Section: "General Dosage Information", URL: "https://www.fda.gov/drugs"},
		},
		Disclaimer: DosageDisclaimer,
		Query:      question,
		DrugCount:  1,
	}
}

// knownDrugDosageAnswer renders guidance for a drug in the table.
func knownDrugDosageAnswer(drug string, g config.DosageGuidance) string {
	var b strings.Builder
	b.WriteString("**IMPORTANT: This is general information only. Always consult your healthcare " +
		"provider before starting any medication regimen.**\n\n")
	fmt.Fprintf(&b, "**General FDA-approved dosage information for %s:**\n\n", drug)
	fmt.Fprintf(&b, "- **Typical Adult Dose**: %s\n", g.MaxDaily)
	fmt.Fprintf(&b, "- **Frequency**: %s\n\n", g.Frequency)
	b.WriteString("**Important Warnings:**\n")
	for _, w := range g.Warnings {
		fmt.Fprintf(&b, "- %s\n", w)
	}
	fmt.Fprintf(&b, "\n**Regarding Daily Use:**\n%s\n\n", g.DailyUseNote)
	b.WriteString("**You Should Consult Your Doctor If:**\n" +
		"- You need pain relief for more than 10 days\n" +
		"- You have chronic conditions (heart, liver, kidney disease)\n" +
		"- You take other medications\n" +
		"- You experience side effects\n" +
		"- You're pregnant or breastfeeding\n\n")
	b.WriteString("**REMEMBER:** Self-medication can be dangerous. This information is for " +
		"educational purposes only and does not replace professional medical advice.")
	return b.String()
}

// unknownDrugDosageAnswer renders the refusal for a drug outside the table.
func unknownDrugDosageAnswer(drug string, suggestions []string) string {
	var b strings.Builder
	b.WriteString("**DOSAGE SAFETY WARNING**\n\n")
	fmt.Fprintf(&b, "I cannot provide specific dosage information for %s as this requires "+
		"personalized medical assessment.\n\n", drug)
	b.WriteString("**You Must Consult:**\n" +
		"- Your prescribing doctor\n" +
		"- A licensed pharmacist\n" +
		"- Your pharmacy's consultation line\n" +
		"- Official prescribing information\n\n")
	b.WriteString("**Never:**\n" +
		"- Guess dosages based on internet information\n" +
		"- Take medications without proper guidance\n" +
		"- Exceed recommended doses\n" +
		"- Share medications with others\n\n")
	b.WriteString("**For accurate dosage information:**\n" +
		"1. Check the medication label/package insert\n" +
		"2. Call your pharmacy\n" +
		"3. Consult your healthcare provider\n" +
		"4. Use official medical resources like FDA.gov")
	if len(suggestions) > 0 {
		fmt.Fprintf(&b, "\n\n**Did you mean:** %s?", strings.Join(suggestions, ", "))
	}
	return b.String()
}

const generalDosageAnswer = "**MEDICATION DOSAGE SAFETY**\n\n" +
	"For any medication dosage questions, you should always consult:\n\n" +
	"**Primary Sources:**\n" +
	"- Your prescribing doctor\n" +
	"- Licensed pharmacist\n" +
	"- Official medication packaging/insert\n" +
	"- FDA-approved prescribing information\n\n" +
	"**Quick Help:**\n" +
	"- Call your pharmacy's consultation line\n" +
	"- Use your insurance's nurse hotline\n" +
	"- Contact your doctor's office\n\n" +
	"**Important Reminders:**\n" +
	"- Never guess dosages\n" +
	"- Don't rely on internet forums\n" +
	"- Avoid sharing medications\n" +
	"- Don't exceed package directions without medical supervision\n\n" +
	"**For emergencies or overdose concerns, call Poison Control: 1-800-222-1222**"
