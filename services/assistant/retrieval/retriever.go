// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval finds label passages semantically related to a query.
// It enriches generation prompts with context beyond the structured fields
// of the merged drug record; the pipeline works without it, so every
// caller treats a nil Retriever or a failed search as "no extra context".
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// className is the Weaviate collection holding indexed label sections.
const className = "DrugSection"

// Passage is one retrieved label excerpt.
type Passage struct {
	Drug    string
	Section string
	Text    string
	URL     string
}

// Retriever searches indexed label text for passages related to a query.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Retriever interface {
	// Search returns up to k passages most related to the query, filtered
	// to the given drug when drug is non-empty. An empty result is valid.
	Search(ctx context.Context, query, drug string, k int) ([]Passage, error)
}

// =============================================================================
// Weaviate Implementation
// =============================================================================

// WeaviateRetriever implements Retriever with a nearText search against a
// Weaviate instance.
//
// # Thread Safety
//
// Safe for concurrent use.
type WeaviateRetriever struct {
	client *weaviate.Client
	logger *slog.Logger
}

// NewWeaviateRetriever connects to a Weaviate instance.
//
// # Inputs
//
//   - host: Host and port, e.g. "localhost:8081".
//   - scheme: "http" or "https".
//   - logger: May be nil.
func NewWeaviateRetriever(host, scheme string, logger *slog.Logger) (*WeaviateRetriever, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("retrieval: creating weaviate client: %w", err)
	}
	return &WeaviateRetriever{client: client, logger: logger}, nil
}

// Search implements Retriever via GraphQL nearText.
func (r *WeaviateRetriever) Search(ctx context.Context, query, drug string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 3
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	get := r.client.GraphQL().Get().
		WithClassName(className).
		WithFields(
			graphql.Field{Name: "drug"},
			graphql.Field{Name: "section"},
			graphql.Field{Name: "text"},
			graphql.Field{Name: "url"},
		).
		WithNearText(nearText).
		WithLimit(k)

	if drug != "" {
		where := filters.Where().
			WithPath([]string{"drug"}).
			WithOperator(filters.Equal).
			WithValueText(drug)
		get = get.WithWhere(where)
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieval: nearText search: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("retrieval: graphql error: %s", resp.Errors[0].Message)
	}

	passages := parsePassages(resp.Data)
	r.logger.Debug("retrieval search complete",
		slog.String("drug", drug),
		slog.Int("passage_count", len(passages)),
	)
	return passages, nil
}

// parsePassages unpacks the untyped GraphQL response shape
// {Get: {DrugSection: [{drug, section, text, url}]}}.
func parsePassages(data map[string]models.JSONObject) []Passage {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	passages := make([]Passage, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		p := Passage{
			Drug:    stringField(obj, "drug"),
			Section: stringField(obj, "section"),
			Text:    stringField(obj, "text"),
			URL:     stringField(obj, "url"),
		}
		if p.Text != "" {
			passages = append(passages, p)
		}
	}
	return passages
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}
