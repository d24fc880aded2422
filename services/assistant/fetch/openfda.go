// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// =============================================================================
// openFDA Wire Types
// =============================================================================

const defaultOpenFDABaseURL = "https://api.fda.gov/drug/label.json"

type openFDAResponse struct {
	Error   *openFDAError   `json:"error,omitempty"`
	Results []openFDAResult `json:"results"`
}

type openFDAError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// openFDAResult is one structured product label. Label sections arrive as
// arrays of paragraph strings.
type openFDAResult struct {
	Description             []string    `json:"description"`
	IndicationsAndUsage     []string    `json:"indications_and_usage"`
	AdverseReactions        []string    `json:"adverse_reactions"`
	Warnings                []string    `json:"warnings"`
	DrugInteractions        []string    `json:"drug_interactions"`
	DosageAndAdministration []string    `json:"dosage_and_administration"`
	Contraindications       []string    `json:"contraindications"`
	OpenFDA                 openFDAMeta `json:"openfda"`
}

type openFDAMeta struct {
	BrandName   []string `json:"brand_name"`
	GenericName []string `json:"generic_name"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenFDAProvider fetches structured drug labels from the openFDA drug
// label API. This is the designated primary source: FDA label text wins
// every merge conflict.
//
// Thread Safety: Safe for concurrent use.
type OpenFDAProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewOpenFDAProvider creates an OpenFDAProvider against the public API.
func NewOpenFDAProvider() *OpenFDAProvider {
	return NewOpenFDAProviderWithConfig(defaultOpenFDABaseURL)
}

// NewOpenFDAProviderWithConfig creates an OpenFDAProvider with an explicit
// base URL. Useful for testing with mock servers.
func NewOpenFDAProviderWithConfig(baseURL string) *OpenFDAProvider {
	return &OpenFDAProvider{
		// Per-call deadlines come from ctx; this is a hard backstop.
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// Name implements Provider.
func (p *OpenFDAProvider) Name() string { return "openfda" }

// Fetch implements Provider against the openFDA drug label endpoint.
//
// Description:
//
//	Searches by generic name, limit 1, and maps the label sections into
//	the canonical field vocabulary. A 404 from openFDA means no label
//	matched and is reported as ErrNoData.
func (p *OpenFDAProvider) Fetch(ctx context.Context, drugName string) (*datatypes.ProviderResult, error) {
	query := fmt.Sprintf(`openfda.generic_name:%q`, strings.ToLower(drugName))
	reqURL := fmt.Sprintf("%s?search=%s&limit=1", p.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("openfda: building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openfda: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("openfda: %q: %w", drugName, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openfda: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("openfda: reading body: %w", err)
	}

	var parsed openFDAResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openfda: decoding body: %w", err)
	}
	if parsed.Error != nil {
		if parsed.Error.Code == "NOT_FOUND" {
			return nil, fmt.Errorf("openfda: %q: %w", drugName, ErrNoData)
		}
		return nil, fmt.Errorf("openfda: api error %s: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("openfda: %q: %w", drugName, ErrNoData)
	}

	label := parsed.Results[0]
	fields := make(map[string]string)
	putSection(fields, FieldDescription, label.Description)
	putSection(fields, FieldUses, label.IndicationsAndUsage)
	putSection(fields, FieldSideEffects, label.AdverseReactions)
	putSection(fields, FieldWarnings, label.Warnings)
	putSection(fields, FieldInteractions, label.DrugInteractions)
	putSection(fields, FieldDosage, label.DosageAndAdministration)
	putSection(fields, FieldContraindications, label.Contraindications)
	if len(label.OpenFDA.BrandName) > 0 {
		fields[FieldBrandNames] = strings.Join(label.OpenFDA.BrandName, ", ")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("openfda: %q: label had no usable sections: %w", drugName, ErrNoData)
	}

	return &datatypes.ProviderResult{
		Provider:  p.Name(),
		Fields:    fields,
		SourceURL: "https://open.fda.gov/drug/label/",
		FetchedAt: time.Now(),
	}, nil
}

// putSection joins a label section's paragraphs under the canonical field
// name, skipping empty sections.
func putSection(fields map[string]string, key string, paragraphs []string) {
	text := strings.TrimSpace(strings.Join(paragraphs, "\n"))
	if text != "" {
		fields[key] = text
	}
}
