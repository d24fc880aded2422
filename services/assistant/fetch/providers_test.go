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
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenFDAProvider_Fetch_MapsLabelSections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		if !strings.Contains(search, "ibuprofen") {
			t.Errorf("search = %q, want generic name query for ibuprofen", search)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [{
				"description": ["Ibuprofen is a nonsteroidal anti-inflammatory drug."],
				"indications_and_usage": ["For relief of mild to moderate pain.", "Reduction of fever."],
				"warnings": ["NSAIDs may cause an increased risk of serious cardiovascular events."],
				"drug_interactions": ["Concomitant use with anticoagulants increases bleeding risk."],
				"openfda": {"brand_name": ["Advil", "Motrin"]}
			}]
		}`))
	}))
	defer server.Close()

	p := NewOpenFDAProviderWithConfig(server.URL)
	result, err := p.Fetch(context.Background(), "ibuprofen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := result.Fields[FieldDescription]; !strings.Contains(got, "nonsteroidal") {
		t.Errorf("description = %q", got)
	}
	if got := result.Fields[FieldUses]; !strings.Contains(got, "fever") {
		t.Errorf("uses should join both paragraphs, got %q", got)
	}
	if got := result.Fields[FieldBrandNames]; got != "Advil, Motrin" {
		t.Errorf("brand names = %q", got)
	}
	if result.Provider != "openfda" {
		t.Errorf("provider = %q", result.Provider)
	}
}

func TestOpenFDAProvider_Fetch_NotFoundIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"code": "NOT_FOUND", "message": "No matches found!"}}`))
	}))
	defer server.Close()

	p := NewOpenFDAProviderWithConfig(server.URL)
	_, err := p.Fetch(context.Background(), "notadrug")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestOpenFDAProvider_Fetch_ServerErrorIsNotNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewOpenFDAProviderWithConfig(server.URL)
	_, err := p.Fetch(context.Background(), "ibuprofen")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoData) {
		t.Fatal("a 500 is a transport failure, not a data miss")
	}
}

func TestRxNavProvider_Fetch_ExtractsRxCUIAndBrands(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "ibuprofen" {
			t.Errorf("name = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"drugGroup": {
				"name": "ibuprofen",
				"conceptGroup": [
					{"tty": "IN", "conceptProperties": [
						{"rxcui": "5640", "name": "ibuprofen", "tty": "IN"}
					]},
					{"tty": "BN", "conceptProperties": [
						{"rxcui": "153010", "name": "Advil", "tty": "BN"},
						{"rxcui": "52177", "name": "Motrin", "tty": "BN"}
					]}
				]
			}
		}`))
	}))
	defer server.Close()

	p := NewRxNavProviderWithConfig(server.URL)
	result, err := p.Fetch(context.Background(), "ibuprofen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Fields[FieldRxCUI]; got != "5640" {
		t.Errorf("rxcui = %q, want 5640", got)
	}
	brands := result.Fields[FieldBrandNames]
	if !strings.Contains(brands, "Advil") || !strings.Contains(brands, "Motrin") {
		t.Errorf("brand names = %q", brands)
	}
}

func TestRxNavProvider_Fetch_EmptyGroupIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"drugGroup": {"name": "xyzzy"}}`))
	}))
	defer server.Close()

	p := NewRxNavProviderWithConfig(server.URL)
	_, err := p.Fetch(context.Background(), "xyzzy")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestWikipediaProvider_Fetch_ExtractBecomesDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "ibuprofen") {
			t.Errorf("path = %q, want the drug name as page title", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"type": "standard",
			"title": "Ibuprofen",
			"extract": "Ibuprofen is a nonsteroidal anti-inflammatory drug used for treating pain."
		}`))
	}))
	defer server.Close()

	p := NewWikipediaProviderWithConfig(server.URL)
	result, err := p.Fetch(context.Background(), "ibuprofen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Fields[FieldDescription]; !strings.Contains(got, "anti-inflammatory") {
		t.Errorf("description = %q", got)
	}
}

func TestWikipediaProvider_Fetch_DisambiguationIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type": "disambiguation", "title": "Mercury", "extract": "Mercury may refer to:"}`))
	}))
	defer server.Close()

	p := NewWikipediaProviderWithConfig(server.URL)
	_, err := p.Fetch(context.Background(), "mercury")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}
