// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator coordinates a query end to end: safety gate,
// analysis, per-type handling, fetch fan-out, answer synthesis, and the
// final output safety check. Failures inside a branch are contained and
// rendered as degraded sections; only malformed input surfaces to the
// caller as an error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ryanthaam/MedExplain/services/assistant/analyze"
	"github.com/ryanthaam/MedExplain/services/assistant/fetch"
	"github.com/ryanthaam/MedExplain/services/assistant/interaction"
	"github.com/ryanthaam/MedExplain/services/assistant/normalize"
	"github.com/ryanthaam/MedExplain/services/assistant/retrieval"
	"github.com/ryanthaam/MedExplain/services/assistant/safety"
	"github.com/ryanthaam/MedExplain/services/assistant/translate"
	"github.com/ryanthaam/MedExplain/services/llm"
	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

const tracerName = "medexplain.assistant"

// sourceURLs maps provider names to the citation URL shown in responses.
var sourceURLs = map[string]string{
	"openfda":   "https://open.fda.gov/drug/label/",
	"rxnav":     "https://rxnav.nlm.nih.gov/",
	"wikipedia": "https://en.wikipedia.org/",
}

// sectionOrder maps canonical record fields to display section names, in
// presentation order.
var sectionOrder = []struct{ field, label string }{
	{fetch.FieldDescription, "Description"},
	{fetch.FieldUses, "Uses"},
	{fetch.FieldDosage, "Dosage"},
	{fetch.FieldSideEffects, "Side Effects"},
	{fetch.FieldWarnings, "Warnings"},
	{fetch.FieldInteractions, "Drug Interactions"},
	{fetch.FieldContraindications, "Contraindications"},
	{fetch.FieldBrandNames, "Brand Names"},
}

// singleDrugPromptTemplate frames single-drug generation. The context block
// is assembled from the merged record plus any retrieved passages.
const singleDrugPromptTemplate = `You are MedExplain, a friendly and helpful assistant that provides medication information in a conversational, user-friendly way.

RESPONSE STYLE:
- Be conversational, warm, and helpful (like talking to a knowledgeable friend)
- Give direct, clear answers without being overly formal
- Use "Yes" or "No" when appropriate instead of long disclaimers
- Make reasonable clinical assumptions based on available data

SAFETY FIRST:
- Always include appropriate safety warnings
- Encourage consulting healthcare professionals for personalized advice
- Be clear about serious interactions or concerns

CONTEXT FROM MEDICAL SOURCES:
%s

USER QUESTION: %s

Provide a helpful, conversational response. If you don't have specific information, make reasonable assumptions based on drug classes and general medical knowledge, but always mention consulting a healthcare provider.`

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator routes classified queries to their handling branch and
// assembles the structured response.
//
// # Thread Safety
//
// Safe for concurrent use. Each query runs independently; shared state
// lives behind the collaborators' own synchronization.
type Orchestrator struct {
	analyzer     *analyze.Analyzer
	fetcher      *fetch.MultiSourceFetcher
	interactions *interaction.Analyzer
	filter       *safety.Filter
	advisor      *safety.DosageAdvisor
	normalizer   *normalize.Normalizer

	translator *translate.Translator // may be nil
	retriever  retrieval.Retriever   // may be nil
	generator  llm.LLMClient         // may be nil

	maxConcurrent   int
	generateTimeout time.Duration
	retrievalK      int

	logger *slog.Logger
}

// Options configures an Orchestrator. Analyzer, Fetcher, Interactions,
// Filter, Advisor, and Normalizer are required; the rest are optional
// collaborators the pipeline degrades without.
type Options struct {
	Analyzer     *analyze.Analyzer
	Fetcher      *fetch.MultiSourceFetcher
	Interactions *interaction.Analyzer
	Filter       *safety.Filter
	Advisor      *safety.DosageAdvisor
	Normalizer   *normalize.Normalizer

	Translator *translate.Translator
	Retriever  retrieval.Retriever
	Generator  llm.LLMClient

	// MaxConcurrent bounds per-query entity fan-out. Default 10.
	MaxConcurrent int
	// GenerateTimeout bounds each generation call. Default 15s.
	GenerateTimeout time.Duration
	// RetrievalK is the passage count per retrieval call. Default 3.
	RetrievalK int

	Logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Analyzer == nil || opts.Fetcher == nil || opts.Interactions == nil ||
		opts.Filter == nil || opts.Advisor == nil || opts.Normalizer == nil {
		panic("NewOrchestrator: required collaborators missing")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 15 * time.Second
	}
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		analyzer:        opts.Analyzer,
		fetcher:         opts.Fetcher,
		interactions:    opts.Interactions,
		filter:          opts.Filter,
		advisor:         opts.Advisor,
		normalizer:      opts.Normalizer,
		translator:      opts.Translator,
		retriever:       opts.Retriever,
		generator:       opts.Generator,
		maxConcurrent:   opts.MaxConcurrent,
		generateTimeout: opts.GenerateTimeout,
		retrievalK:      opts.RetrievalK,
		logger:          opts.Logger,
	}
}

// HandleQuery processes one raw query end to end.
//
// # Description
//
// Order: input safety gate, analysis (validation, follow-up resolution,
// extraction, classification), branch by query type, output safety check.
// Every branch produces a structured response; the only error this method
// returns is analyze.ErrMalformedQuery for invalid input.
//
// # Outputs
//
//   - *datatypes.StructuredResponse: Never nil when error is nil.
//   - error: analyze.ErrMalformedQuery or ctx error; nothing else.
func (o *Orchestrator) HandleQuery(ctx context.Context, rawText, sessionID string) (*datatypes.StructuredResponse, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.HandleQuery",
		oteltrace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Int("query_len", len(rawText)),
		),
	)
	defer span.End()

	if check := o.filter.Check(rawText); !check.Safe {
		recordBlocked(string(check.Category))
		recordQuery("blocked", "refused", time.Since(start))
		span.SetAttributes(attribute.String("blocked_category", string(check.Category)))
		o.logger.Warn("query refused by safety filter",
			slog.String("session_id", sessionID),
			slog.String("category", string(check.Category)),
		)
		return &datatypes.StructuredResponse{
			Answer:        check.Message,
			Confidence:    datatypes.ConfidenceHigh,
			SafetyWarning: true,
			Disclaimer:    safety.DisclaimerFor(check.Category),
			Query:         rawText,
		}, nil
	}

	record, err := o.analyzer.Analyze(rawText, sessionID)
	if err != nil {
		recordQuery("invalid", "rejected", time.Since(start))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("query_type", string(record.Type)),
		attribute.Int("drug_count", len(record.Drugs)),
		attribute.Bool("truncated", record.Truncated),
	)

	var resp *datatypes.StructuredResponse
	switch record.Type {
	case datatypes.QueryInteraction:
		resp = o.handleInteraction(ctx, record)
	case datatypes.QueryMultiDrug:
		resp = o.handleMultiDrug(ctx, record)
	case datatypes.QueryDosage:
		resp = o.handleDosage(record)
	case datatypes.QueryOutOfScope:
		resp = o.handleOutOfScope(record)
	default:
		resp = o.handleSingleDrug(ctx, record)
	}

	resp.Query = record.RawText
	resp.Truncated = resp.Truncated || record.Truncated
	resp.DrugCount = len(record.Drugs)
	if resp.Disclaimer == "" {
		resp.Disclaimer = safety.GeneralDisclaimer
	}

	// Output gate: generated text that trips the dangerous-content check
	// is replaced wholesale, never partially scrubbed.
	if !o.filter.IsSafe(resp.Answer) {
		o.logger.Warn("response blocked by output safety check",
			slog.String("session_id", sessionID),
			slog.String("query_type", string(record.Type)),
		)
		resp.Answer = safety.Refusal
		resp.SafetyWarning = true
		resp.Sources = nil
		recordQuery(string(record.Type), "output_blocked", time.Since(start))
		return resp, nil
	}

	recordQuery(string(record.Type), "ok", time.Since(start))
	return resp, nil
}

// =============================================================================
// Single Drug
// =============================================================================

func (o *Orchestrator) handleSingleDrug(ctx context.Context, record *datatypes.QueryRecord) *datatypes.StructuredResponse {
	drug := record.Drugs[0]
	if drug.NeedsDisambiguation {
		return o.clarificationResponse(drug)
	}

	enriched, err := o.fetcher.FetchDrug(ctx, strings.ToLower(drug.Name))
	if err != nil {
		return o.fetchFailureResponse(drug, err)
	}

	passages := o.retrievePassages(ctx, record.ResolvedText, strings.ToLower(drug.Name))
	contextText := buildContext(enriched, passages)
	answer := o.generateAnswer(ctx, record.ResolvedText, contextText, enriched)

	resp := &datatypes.StructuredResponse{
		Answer:        answer,
		Confidence:    confidenceFor(len(enriched.Sources)+len(passages), len(contextText)),
		Sources:       sourcesFor(drug.Name, enriched, passages),
		SafetyWarning: enriched.Fields[fetch.FieldWarnings] != "",
	}
	if enriched.Coverage == datatypes.CoverageStale {
		resp.Answer += "\n\nNote: this information comes from a cached copy and may not reflect the latest label."
		resp.Confidence = datatypes.ConfidenceLow
	}
	return resp
}

// fetchFailureResponse maps a fetch error to the matching degraded answer.
func (o *Orchestrator) fetchFailureResponse(drug datatypes.Drug, err error) *datatypes.StructuredResponse {
	switch {
	case errors.Is(err, fetch.ErrRateLimited):
		return &datatypes.StructuredResponse{
			Answer: fmt.Sprintf("I'm handling a lot of requests right now and couldn't look up %s. "+
				"Please try again in a minute.", drug.Name),
			Confidence: datatypes.ConfidenceLow,
		}
	case errors.Is(err, fetch.ErrUnavailable):
		return &datatypes.StructuredResponse{
			Answer: fmt.Sprintf("My medication data sources are temporarily unreachable, so I couldn't "+
				"look up %s. Please try again shortly, or consult your pharmacist.", drug.Name),
			Confidence: datatypes.ConfidenceLow,
		}
	default:
		return o.notFoundResponse(drug)
	}
}

// notFoundResponse renders the "did you mean" answer for a drug no source
// has data for.
func (o *Orchestrator) notFoundResponse(drug datatypes.Drug) *datatypes.StructuredResponse {
	var b strings.Builder
	fmt.Fprintf(&b, "I don't have information about %s in my current sources. ", drug.Name)

	suggestions := drug.Suggestions
	if len(suggestions) == 0 {
		suggestions = o.normalizer.Suggest(drug.Name, 3)
	}
	if len(suggestions) > 0 {
		b.WriteString("\n\n**Did you mean one of these?**\n")
		for i, s := range suggestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\nYou can ask about any of these instead.")
	} else {
		b.WriteString("Please consult your healthcare provider or pharmacist for accurate " +
			"information about this medication.")
	}

	return &datatypes.StructuredResponse{
		Answer:     b.String(),
		Confidence: datatypes.ConfidenceLow,
	}
}

// clarificationResponse asks the user to pick among candidate names for a
// mention that could not be normalized.
func (o *Orchestrator) clarificationResponse(drug datatypes.Drug) *datatypes.StructuredResponse {
	var b strings.Builder
	fmt.Fprintf(&b, "I couldn't confidently identify %q as a medication.", drug.Name)
	if len(drug.Suggestions) > 0 {
		b.WriteString(" Did you mean: ")
		b.WriteString(strings.Join(drug.Suggestions, ", "))
		b.WriteString("?")
	} else {
		b.WriteString(" Could you check the spelling or give the generic name?")
	}
	return &datatypes.StructuredResponse{
		Answer:     b.String(),
		Confidence: datatypes.ConfidenceLow,
	}
}

// =============================================================================
// Multi Drug
// =============================================================================

// drugSection is one entity's contribution to a multi-drug answer,
// joined by index so mention order survives concurrent completion.
type drugSection struct {
	text       string
	sources    []datatypes.Source
	confidence datatypes.Confidence
	warning    bool
}

func (o *Orchestrator) handleMultiDrug(ctx context.Context, record *datatypes.QueryRecord) *datatypes.StructuredResponse {
	sections := make([]drugSection, len(record.Drugs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrent)
	for i, drug := range record.Drugs {
		g.Go(func() error {
			sections[i] = o.buildDrugSection(gctx, drug)
			return nil
		})
	}
	_ = g.Wait() // sections never error; failures become unavailable text

	var b strings.Builder
	b.WriteString("Here's information about the medications you asked about:\n\n")
	var allSources []datatypes.Source
	confidences := make([]datatypes.Confidence, 0, len(sections))
	warning := false
	for i, section := range sections {
		fmt.Fprintf(&b, "## %d. %s\n\n%s\n\n", i+1, record.Drugs[i].Name, section.text)
		if i < len(sections)-1 {
			b.WriteString("---\n\n")
		}
		allSources = append(allSources, section.sources...)
		confidences = append(confidences, section.confidence)
		warning = warning || section.warning
	}

	return &datatypes.StructuredResponse{
		Answer:        strings.TrimSpace(b.String()),
		Confidence:    combineConfidence(confidences),
		Sources:       allSources,
		SafetyWarning: warning,
	}
}

// buildDrugSection produces one entity's section. Failures degrade to an
// explanatory paragraph; they never abort sibling sections.
func (o *Orchestrator) buildDrugSection(ctx context.Context, drug datatypes.Drug) drugSection {
	if drug.NeedsDisambiguation {
		return drugSection{
			text:       o.clarificationResponse(drug).Answer,
			confidence: datatypes.ConfidenceLow,
		}
	}

	enriched, err := o.fetcher.FetchDrug(ctx, strings.ToLower(drug.Name))
	if err != nil {
		return drugSection{
			text:       o.fetchFailureResponse(drug, err).Answer,
			confidence: datatypes.ConfidenceLow,
		}
	}

	contextText := buildContext(enriched, nil)
	answer := o.generateAnswer(ctx, fmt.Sprintf("What does %s do?", drug.Name), contextText, enriched)
	return drugSection{
		text:       answer,
		sources:    sourcesFor(drug.Name, enriched, nil),
		confidence: confidenceFor(len(enriched.Sources), len(contextText)),
		warning:    enriched.Fields[fetch.FieldWarnings] != "",
	}
}

// =============================================================================
// Interaction
// =============================================================================

func (o *Orchestrator) handleInteraction(ctx context.Context, record *datatypes.QueryRecord) *datatypes.StructuredResponse {
	resolved := make([]datatypes.Drug, 0, 2)
	for _, d := range record.Drugs {
		if !d.NeedsDisambiguation {
			resolved = append(resolved, d)
		}
		if len(resolved) == 2 {
			break
		}
	}
	if len(resolved) < 2 {
		for _, d := range record.Drugs {
			if d.NeedsDisambiguation {
				return o.clarificationResponse(d)
			}
		}
		return o.handleSingleDrug(ctx, record)
	}

	drugA, drugB := resolved[0], resolved[1]
	verdict := o.interactions.Analyze(drugA.Name, drugB.Name)

	// Records enrich the citation list; either fetch may fail without
	// affecting the table verdict.
	var recA, recB *datatypes.DrugRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { recA, _ = o.fetcher.FetchDrug(gctx, strings.ToLower(drugA.Name)); return nil })
	g.Go(func() error { recB, _ = o.fetcher.FetchDrug(gctx, strings.ToLower(drugB.Name)); return nil })
	_ = g.Wait()

	answer := verdict.Description + "\n\n" + verdict.Advice
	confidence := verdict.Confidence

	// Table lookup outranks generated speculation; generation only fills
	// the gap when the table has nothing.
	if verdict.Origin == interaction.OriginGenerated && o.generator != nil {
		prompt := fmt.Sprintf(singleDrugPromptTemplate,
			interactionContext(recA, recB),
			fmt.Sprintf("Is it safe to take %s and %s together?", drugA.Name, drugB.Name))
		if generated, err := o.generate(ctx, prompt); err == nil {
			answer = generated + "\n\n" + verdict.Advice
		}
	}

	var sources []datatypes.Source
	if recA != nil {
		sources = append(sources, sourcesFor(drugA.Name, recA, nil)...)
	}
	if recB != nil {
		sources = append(sources, sourcesFor(drugB.Name, recB, nil)...)
	}

	return &datatypes.StructuredResponse{
		Answer:        o.translate(ctx, answer),
		Confidence:    confidence,
		Sources:       sources,
		SafetyWarning: verdict.Severity != interaction.SeveritySafe,
		Disclaimer:    safety.SafetyDisclaimer,
	}
}

// interactionContext assembles generation context from whichever records
// were fetchable.
func interactionContext(records ...*datatypes.DrugRecord) string {
	var parts []string
	for _, r := range records {
		if r == nil {
			continue
		}
		if text := r.Fields[fetch.FieldInteractions]; text != "" {
			parts = append(parts, fmt.Sprintf("%s drug interactions: %s", normalize.Title(r.Drug), text))
		}
		if text := r.Fields[fetch.FieldWarnings]; text != "" {
			parts = append(parts, fmt.Sprintf("%s warnings: %s", normalize.Title(r.Drug), text))
		}
	}
	if len(parts) == 0 {
		return "No label information available for these medications."
	}
	return strings.Join(parts, "\n\n")
}

// =============================================================================
// Dosage and Out of Scope
// =============================================================================

func (o *Orchestrator) handleDosage(record *datatypes.QueryRecord) *datatypes.StructuredResponse {
	drug := ""
	var suggestions []string
	if len(record.Drugs) > 0 {
		if record.Drugs[0].NeedsDisambiguation {
			suggestions = record.Drugs[0].Suggestions
		} else {
			drug = record.Drugs[0].Name
		}
	}
	return o.advisor.Advise(drug, suggestions, record.RawText)
}

func (o *Orchestrator) handleOutOfScope(record *datatypes.QueryRecord) *datatypes.StructuredResponse {
	return &datatypes.StructuredResponse{
		Answer: "I can help with questions about specific medications: what they do, their side " +
			"effects, warnings, and how they interact with each other. I couldn't find a medication " +
			"in your question. Try asking about a drug by name, for example \"What are the side " +
			"effects of ibuprofen?\"",
		Confidence: datatypes.ConfidenceLow,
	}
}

// =============================================================================
// Synthesis Helpers
// =============================================================================

// generateAnswer produces the answer text for one drug: generation when a
// backend is configured, extractive summary otherwise or on any failure.
func (o *Orchestrator) generateAnswer(ctx context.Context, question, contextText string, record *datatypes.DrugRecord) string {
	if o.generator != nil {
		prompt := fmt.Sprintf(singleDrugPromptTemplate, contextText, question)
		if generated, err := o.generate(ctx, prompt); err == nil {
			return o.translate(ctx, generated)
		} else {
			o.logger.Warn("generation failed, using extractive answer",
				slog.String("drug", record.Drug),
				slog.String("error", err.Error()),
			)
		}
	}
	return o.translate(ctx, extractiveAnswer(record))
}

// generate runs one bounded generation call.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, o.generateTimeout)
	defer cancel()
	return o.generator.Generate(gctx, prompt, llm.GenerationParams{})
}

// translate applies the plain-English pass when a translator is configured.
func (o *Orchestrator) translate(ctx context.Context, text string) string {
	if o.translator == nil {
		return text
	}
	return o.translator.Translate(ctx, text)
}

// retrievePassages runs semantic retrieval, treating any failure as "no
// extra context".
func (o *Orchestrator) retrievePassages(ctx context.Context, query, drug string) []retrieval.Passage {
	if o.retriever == nil {
		return nil
	}
	passages, err := o.retriever.Search(ctx, query, drug, o.retrievalK)
	if err != nil {
		o.logger.Warn("retrieval failed, continuing without passages",
			slog.String("drug", drug),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return passages
}

// extractiveAnswer renders the merged record's sections directly. Used
// when no generation backend is configured or the call failed.
func extractiveAnswer(record *datatypes.DrugRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what the drug label says about %s:\n", normalize.Title(record.Drug))
	for _, s := range sectionOrder {
		text := record.Fields[s.field]
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n**%s**\n%s\n", s.label, truncateText(text, 600))
	}
	return strings.TrimSpace(b.String())
}

// buildContext assembles the generation context block from the merged
// record and retrieved passages.
func buildContext(record *datatypes.DrugRecord, passages []retrieval.Passage) string {
	var b strings.Builder
	for _, s := range sectionOrder {
		if text := record.Fields[s.field]; text != "" {
			fmt.Fprintf(&b, "%s: %s\n\n", s.label, truncateText(text, 1200))
		}
	}
	for _, p := range passages {
		fmt.Fprintf(&b, "%s (%s): %s\n\n", p.Drug, p.Section, truncateText(p.Text, 800))
	}
	if b.Len() == 0 {
		return "No relevant label information found for this query."
	}
	return strings.TrimSpace(b.String())
}

// sourcesFor builds the citation list: one entry per contributing
// provider plus one per retrieved passage.
func sourcesFor(drugName string, record *datatypes.DrugRecord, passages []retrieval.Passage) []datatypes.Source {
	sources := make([]datatypes.Source, 0, len(record.Sources)+len(passages))
	for _, provider := range record.Sources {
		sources = append(sources, datatypes.Source{
			Drug:    drugName,
			Section: "Drug Label",
			URL:     sourceURLs[provider],
		})
	}
	for _, p := range passages {
		sources = append(sources, datatypes.Source{Drug: p.Drug, Section: p.Section, URL: p.URL})
	}
	return sources
}

// confidenceFor grades an answer by source count and context volume.
func confidenceFor(sourceCount, contextLen int) datatypes.Confidence {
	switch {
	case sourceCount >= 3 && contextLen > 500:
		return datatypes.ConfidenceHigh
	case sourceCount >= 2 && contextLen > 200:
		return datatypes.ConfidenceMedium
	default:
		return datatypes.ConfidenceLow
	}
}

// combineConfidence reduces per-section confidences: any High wins, then
// any Medium, else Low.
func combineConfidence(levels []datatypes.Confidence) datatypes.Confidence {
	combined := datatypes.ConfidenceLow
	for _, l := range levels {
		if l == datatypes.ConfidenceHigh {
			return datatypes.ConfidenceHigh
		}
		if l == datatypes.ConfidenceMedium {
			combined = datatypes.ConfidenceMedium
		}
	}
	return combined
}

// truncateText bounds one section's contribution, cutting at a word
// boundary where possible.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
