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
// Wikipedia Wire Types
// =============================================================================

const defaultWikipediaBaseURL = "https://en.wikipedia.org/api/rest_v1/page/summary"

type wikipediaSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
	Type        string `json:"type"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// WikipediaProvider fetches the lead summary of a drug's Wikipedia article.
// It is a secondary source supplying a plain-language description when the
// FDA label's description section is missing or absent entirely.
//
// Thread Safety: Safe for concurrent use.
type WikipediaProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewWikipediaProvider creates a WikipediaProvider against the public API.
func NewWikipediaProvider() *WikipediaProvider {
	return NewWikipediaProviderWithConfig(defaultWikipediaBaseURL)
}

// NewWikipediaProviderWithConfig creates a WikipediaProvider with an explicit
// base URL. Useful for testing with mock servers.
func NewWikipediaProviderWithConfig(baseURL string) *WikipediaProvider {
	return &WikipediaProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// Name implements Provider.
func (p *WikipediaProvider) Name() string { return "wikipedia" }

// Fetch implements Provider against the REST summary endpoint.
func (p *WikipediaProvider) Fetch(ctx context.Context, drugName string) (*datatypes.ProviderResult, error) {
	title := strings.ReplaceAll(strings.TrimSpace(drugName), " ", "_")
	reqURL := fmt.Sprintf("%s/%s", p.baseURL, url.PathEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wikipedia: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wikipedia: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("wikipedia: %q: %w", drugName, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("wikipedia: reading body: %w", err)
	}

	var summary wikipediaSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("wikipedia: decoding body: %w", err)
	}

	// Disambiguation pages carry no drug content.
	if summary.Type == "disambiguation" || strings.TrimSpace(summary.Extract) == "" {
		return nil, fmt.Errorf("wikipedia: %q: %w", drugName, ErrNoData)
	}

	fields := map[string]string{
		FieldDescription: strings.TrimSpace(summary.Extract),
	}
	sourceURL := summary.ContentURLs.Desktop.Page
	if sourceURL == "" {
		sourceURL = "https://en.wikipedia.org/wiki/" + title
	}

	return &datatypes.ProviderResult{
		Provider:  p.Name(),
		Fields:    fields,
		SourceURL: sourceURL,
		FetchedAt: time.Now(),
	}, nil
}
