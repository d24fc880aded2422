// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared types exchanged between the MedExplain
// core components: analyzed queries, resolved drug entities, provider
// payloads, merged drug records, and the structured response returned to
// the caller.
//
// All types in this package are plain data. Once an analyzed query or a
// merged record has been handed to the orchestrator it is treated as
// read-only by every component that receives it.
package datatypes

import "time"

// =============================================================================
// Conversation Messages
// =============================================================================

// Message is a single turn in a conversation sent to a generation backend.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// =============================================================================
// Drug Entities
// =============================================================================

// Drug is a canonical medication entity recognized from free text.
//
// Description:
//
//	Created by the normalizer on first recognition and immutable afterwards.
//	Name is the canonical generic name in title case ("Ibuprofen"). Aliases
//	holds the surface forms known to map to this entity (brand names,
//	misspellings, international variants). Class is the pharmacological
//	class tag when known ("nsaid", "ssri"), empty otherwise.
type Drug struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Class   string   `json:"class,omitempty"`

	// NeedsDisambiguation is true when normalization could not confidently
	// resolve the surface form. Suggestions carries the candidate canonical
	// names for caller-driven clarification.
	NeedsDisambiguation bool     `json:"needs_disambiguation,omitempty"`
	Suggestions         []string `json:"suggestions,omitempty"`
}

// =============================================================================
// Analyzed Queries
// =============================================================================

// QueryType classifies an incoming query.
type QueryType string

const (
	// QuerySingleDrug asks about exactly one medication.
	QuerySingleDrug QueryType = "single_drug"

	// QueryMultiDrug asks about several medications at once (lists).
	QueryMultiDrug QueryType = "multi_drug"

	// QueryInteraction asks whether medications can be combined.
	QueryInteraction QueryType = "interaction"

	// QueryDosage asks about dose amounts or frequency.
	QueryDosage QueryType = "dosage"

	// QueryOutOfScope recognized no medication and is not a follow-up.
	QueryOutOfScope QueryType = "out_of_scope"
)

// QueryRecord is the analyzed form of one incoming query.
//
// Description:
//
//	Owned by the request lifecycle: built by the analyzer, consumed by the
//	orchestrator, discarded after the response is produced. The resolved
//	drugs are in original mention order.
type QueryRecord struct {
	// RawText is the text as received from the caller.
	RawText string `json:"raw_text"`

	// ResolvedText is the text after conversational reference substitution.
	// Equal to RawText when no substitution happened.
	ResolvedText string `json:"resolved_text"`

	// Type is the detected query type.
	Type QueryType `json:"type"`

	// Drugs are the resolved entities in mention order.
	Drugs []Drug `json:"drugs"`

	// Truncated is true when more entities were mentioned than the
	// configured maximum and the tail was dropped.
	Truncated bool `json:"truncated,omitempty"`

	// SessionID identifies the conversation session the query belongs to.
	SessionID string `json:"session_id"`

	// Timestamp is when the query was analyzed.
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// Provider Payloads and Merged Records
// =============================================================================

// ProviderResult is the raw outcome of one provider fetch for one drug.
type ProviderResult struct {
	// Provider is the source name ("openfda", "rxnav", "wikipedia").
	Provider string `json:"provider"`

	// Fields holds the extracted sections keyed by canonical field name
	// ("description", "side_effects", "warnings", "interactions", ...).
	Fields map[string]string `json:"fields,omitempty"`

	// SourceURL points at the upstream document when the provider has one.
	SourceURL string `json:"source_url,omitempty"`

	// Err is non-nil when the fetch failed. A failed result contributes
	// nothing to the merge.
	Err error `json:"-"`

	// FetchedAt is when the provider call completed.
	FetchedAt time.Time `json:"fetched_at"`
}

// Coverage describes how complete a merged drug record is.
type Coverage string

const (
	// CoverageFull means the primary provider contributed.
	CoverageFull Coverage = "full"

	// CoveragePartial means only secondary providers contributed.
	CoveragePartial Coverage = "partial"

	// CoverageStale means the record was served past its freshness window
	// because the rate limiter denied a refresh.
	CoverageStale Coverage = "stale"

	// CoverageUnavailable means no data could be obtained at all.
	CoverageUnavailable Coverage = "unavailable"
)

// DrugRecord is the merged, enriched view of one drug across providers.
//
// Description:
//
//	Built by the multi-source fetcher: the primary provider's fields win on
//	conflict, secondary providers only fill gaps. A record is never
//	partially stale — an expired cached record is recomputed wholesale.
type DrugRecord struct {
	// Drug is the canonical generic name the record was merged for.
	Drug string `json:"drug"`

	Fields map[string]string `json:"fields"`

	// Sources lists the provider names that contributed fields.
	Sources  []string `json:"sources"`
	Coverage Coverage `json:"coverage"`

	// MergedAt is when the merge was computed.
	MergedAt time.Time `json:"merged_at"`
}

// =============================================================================
// Structured Responses
// =============================================================================

// Confidence grades how well-sourced an answer is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Source identifies one upstream contribution to an answer.
type Source struct {
	Drug    string `json:"drug"`
	Section string `json:"section"`
	URL     string `json:"url,omitempty"`
}

// StructuredResponse is the final answer returned to the caller.
type StructuredResponse struct {
	Answer        string     `json:"answer"`
	Confidence    Confidence `json:"confidence"`
	Sources       []Source   `json:"sources"`
	SafetyWarning bool       `json:"safety_warning"`
	Disclaimer    string     `json:"disclaimer"`
	Truncated     bool       `json:"truncated,omitempty"`

	// Query echoes the raw query the response answers.
	Query string `json:"query"`

	// DrugCount is set for multi-drug answers (number of sections).
	DrugCount int `json:"drug_count,omitempty"`
}
