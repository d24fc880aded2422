// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

func TestGenerate_Success(t *testing.T) {
	var gotAuth string
	var gotReq openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "Ibuprofen relieves pain."}, FinishReason: "stop"},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)
	got, err := client.Generate(context.Background(), "What does ibuprofen do?", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "Ibuprofen relieves pain." {
		t.Errorf("Generate = %q, want completion text", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("expected system persona plus user prompt, got %+v", gotReq.Messages)
	}
}

// An empty baseURL must select the production endpoint. The service
// wiring passes "" for the URL, so a client stored verbatim would POST
// to an empty target and fail every generation call.
func TestNewOpenAIClientWithConfig_EmptyBaseURLDefaults(t *testing.T) {
	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", "")
	if client.baseURL != defaultOpenAIBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, defaultOpenAIBaseURL)
	}

	explicit := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", "http://localhost:9999")
	if explicit.baseURL != "http://localhost:9999" {
		t.Errorf("explicit baseURL overridden: %q", explicit.baseURL)
	}
}

func TestChat_MapsUnknownRoleToUser(t *testing.T) {
	var gotReq openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "tool", Content: "payload"},
	}, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("unknown role not mapped to user: %+v", gotReq.Messages)
	}
}

func TestChat_ModelOverride(t *testing.T) {
	var gotReq openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{ModelOverride: "gpt-4o"})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if gotReq.Model != "gpt-4o" {
		t.Errorf("model = %q, want override", gotReq.Model)
	}
}

func TestChat_APIErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Error: &openaiError{Type: "invalid_request_error", Message: "model not found"},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "nope", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	if err == nil {
		t.Fatal("expected API error")
	}
	if !strings.Contains(err.Error(), "invalid_request_error") {
		t.Errorf("error should carry the API error type: %v", err)
	}
}

func TestChat_Non200RedactsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key sk-abcdefghijklmnopqrstuvwxyz123456"}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if strings.Contains(err.Error(), "sk-abcdefghijklmnop") {
		t.Errorf("error leaked an API key: %v", err)
	}
	if !strings.Contains(err.Error(), "[REDACTED:openai_key]") {
		t.Errorf("redaction marker missing: %v", err)
	}
}

func TestChat_BudgetExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Content: "ok"}}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", server.URL)
	msgs := []datatypes.Message{{Role: "user", Content: "hi"}}

	// Burn through the burst allowance; the bucket refills at 2/s so the
	// loop stays well ahead of it.
	var sawBudget bool
	for i := 0; i < 20; i++ {
		if _, err := client.Chat(context.Background(), msgs, GenerationParams{}); errors.Is(err, ErrBudgetExhausted) {
			sawBudget = true
			break
		}
	}
	if !sawBudget {
		t.Error("rate budget never exhausted after 20 immediate calls")
	}
}

func TestSafeLogString(t *testing.T) {
	cases := []struct {
		in       string
		contains string
		leaked   string
	}{
		{
			in:       "auth failed for sk-abcdefghijklmnopqrstuvwx",
			contains: "[REDACTED:openai_key]",
			leaked:   "sk-abcdefghijklmnop",
		},
		{
			in:       "header Bearer abc123def456ghi was rejected",
			contains: "[REDACTED:bearer_token]",
			leaked:   "abc123def456",
		},
		{
			in:       "url ?api_key=supersecretvalue123 rejected",
			contains: "key=[REDACTED]",
			leaked:   "supersecretvalue",
		},
		{
			in:       "dsn password=hunter22 host=db",
			contains: "password=[REDACTED]",
			leaked:   "hunter22",
		},
	}
	for _, tc := range cases {
		got := SafeLogString(tc.in)
		if !strings.Contains(got, tc.contains) {
			t.Errorf("SafeLogString(%q) = %q, missing %q", tc.in, got, tc.contains)
		}
		if strings.Contains(got, tc.leaked) {
			t.Errorf("SafeLogString(%q) leaked secret: %q", tc.in, got)
		}
	}
	if got := SafeLogString(""); got != "" {
		t.Errorf("SafeLogString(\"\") = %q", got)
	}
}
