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
// RxNav Wire Types
// =============================================================================

const defaultRxNavBaseURL = "https://rxnav.nlm.nih.gov/REST"

type rxNavDrugsResponse struct {
	DrugGroup rxNavDrugGroup `json:"drugGroup"`
}

type rxNavDrugGroup struct {
	Name          string              `json:"name"`
	ConceptGroups []rxNavConceptGroup `json:"conceptGroup"`
}

type rxNavConceptGroup struct {
	TTY        string         `json:"tty"`
	Properties []rxNavConcept `json:"conceptProperties"`
}

type rxNavConcept struct {
	RxCUI    string `json:"rxcui"`
	Name     string `json:"name"`
	Synonym  string `json:"synonym"`
	TTY      string `json:"tty"`
	Language string `json:"language"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// RxNavProvider fetches RxNorm concept data from the NLM RxNav API. It is a
// secondary source: its fields only fill gaps the FDA label leaves open,
// chiefly the RxCUI identifier and the brand name roster.
//
// Thread Safety: Safe for concurrent use.
type RxNavProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewRxNavProvider creates an RxNavProvider against the public API.
func NewRxNavProvider() *RxNavProvider {
	return NewRxNavProviderWithConfig(defaultRxNavBaseURL)
}

// NewRxNavProviderWithConfig creates an RxNavProvider with an explicit base
// URL. Useful for testing with mock servers.
func NewRxNavProviderWithConfig(baseURL string) *RxNavProvider {
	return &RxNavProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// Name implements Provider.
func (p *RxNavProvider) Name() string { return "rxnav" }

// Fetch implements Provider against the RxNav /drugs.json endpoint.
//
// Description:
//
//	Resolves the drug name to RxNorm concepts. The first ingredient or
//	semantic clinical drug concept supplies the RxCUI; brand concepts
//	(tty SBD/BN) are collected into the brand-name field.
func (p *RxNavProvider) Fetch(ctx context.Context, drugName string) (*datatypes.ProviderResult, error) {
	reqURL := fmt.Sprintf("%s/drugs.json?name=%s", p.baseURL, url.QueryEscape(strings.ToLower(drugName)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rxnav: building request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rxnav: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rxnav: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("rxnav: reading body: %w", err)
	}

	var parsed rxNavDrugsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("rxnav: decoding body: %w", err)
	}

	fields := make(map[string]string)
	var brands []string
	seenBrands := make(map[string]bool)
	for _, group := range parsed.DrugGroup.ConceptGroups {
		for _, concept := range group.Properties {
			switch group.TTY {
			case "IN", "MIN", "SCD":
				if fields[FieldRxCUI] == "" && concept.RxCUI != "" {
					fields[FieldRxCUI] = concept.RxCUI
				}
			case "BN", "SBD":
				brand := brandFromConcept(concept)
				if brand != "" && !seenBrands[strings.ToLower(brand)] {
					seenBrands[strings.ToLower(brand)] = true
					brands = append(brands, brand)
				}
			}
		}
	}
	if len(brands) > 0 {
		fields[FieldBrandNames] = strings.Join(brands, ", ")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("rxnav: %q: %w", drugName, ErrNoData)
	}

	return &datatypes.ProviderResult{
		Provider:  p.Name(),
		Fields:    fields,
		SourceURL: "https://rxnav.nlm.nih.gov/",
		FetchedAt: time.Now(),
	}, nil
}

// brandFromConcept prefers the display synonym over the full clinical name,
// which for SBD concepts embeds dose and form.
func brandFromConcept(c rxNavConcept) string {
	if c.Synonym != "" {
		return c.Synonym
	}
	if idx := strings.Index(c.Name, "["); idx > 0 {
		bracketed := c.Name[idx+1:]
		if end := strings.Index(bracketed, "]"); end > 0 {
			return bracketed[:end]
		}
	}
	return c.Name
}
