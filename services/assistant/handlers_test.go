// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assistant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanthaam/MedExplain/services/assistant/config"
)

// newTestRouter wires a service with no external backends. Tests exercise
// only the query paths that never reach the providers: safety refusals,
// dosage guidance, vocabulary lookups, and validation errors.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	settings := config.Settings{
		MaxEntitiesPerQuery: 10,
		MaxQueryLength:      2000,
		SessionMemorySize:   3,
		SessionIdleTimeout:  5 * time.Minute,
		CacheTTL:            15 * time.Minute,
	}
	svc, err := NewService(settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandlers(svc))
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleQuery_MissingQueryField(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/v1/assistant/query", `{"session_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "MISSING_PARAMETER", body.Code)
}

func TestHandleQuery_MalformedQueryRejected(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/v1/assistant/query", `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "MALFORMED_QUERY", body.Code)
}

func TestHandleQuery_GeneratesSessionID(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/v1/assistant/query",
		`{"query":"How much tylenol can I take per day?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.SessionID, "omitted session_id should be generated")
	assert.NotEmpty(t, body.RequestID)
	assert.True(t, body.SafetyWarning)
	assert.Contains(t, body.Answer, "Typical Adult Dose")
}

func TestHandleQuery_EchoesSessionID(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/v1/assistant/query",
		`{"query":"How much tylenol can I take per day?","session_id":"abc-123"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "abc-123", body.SessionID)
}

func TestHandleQuery_EchoesRequestIDHeader(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/assistant/query",
		strings.NewReader(`{"query":"How much tylenol can I take per day?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body.RequestID)
}

func TestHandleQuery_RefusedQueryStillOK(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/v1/assistant/query",
		`{"query":"what is the lethal dose of acetaminophen"}`)
	require.Equal(t, http.StatusOK, w.Code, "refusals are answers, not errors")

	var body QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.SafetyWarning)
	assert.Contains(t, body.Answer, "988")
}

func TestHandleSuggest(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/v1/assistant/suggest?q=ibuprofn", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body SuggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ibuprofn", body.Query)
	assert.Contains(t, body.Suggestions, "Ibuprofen")
}

func TestHandleSuggest_MissingParam(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/v1/assistant/suggest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "MISSING_PARAMETER", body.Code)
}

func TestHandleListDrugs(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/v1/assistant/drugs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Drugs []string `json:"drugs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, len(body.Drugs), body.Count)
	assert.Contains(t, body.Drugs, "Ibuprofen")
}

func TestHandleClearSession(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodDelete, "/v1/assistant/session/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cleared":true`)
}

func TestHealthAndReady(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/v1/assistant/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/assistant/ready", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)
}
