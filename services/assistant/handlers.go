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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ryanthaam/MedExplain/services/assistant/analyze"
	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// ErrorResponse is the uniform error body for all assistant endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryRequest is the body for POST /v1/assistant/query.
type QueryRequest struct {
	// Query is the raw user question. Required.
	Query string `json:"query" binding:"required"`

	// SessionID ties follow-up questions to earlier ones. Optional; a new
	// session is created when omitted and returned in the response.
	SessionID string `json:"session_id"`
}

// QueryResponse wraps the structured answer with session bookkeeping.
type QueryResponse struct {
	*datatypes.StructuredResponse
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
}

// SuggestResponse is the body for GET /v1/assistant/suggest.
type SuggestResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

// Handlers holds the HTTP handlers for the assistant service.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates the handler set for a wired service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, logger: svc.logger}
}

// getOrCreateRequestID returns the inbound X-Request-ID or generates one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleQuery handles POST /v1/assistant/query.
//
// Description:
//
//	Runs one question through the full pipeline: safety gate, analysis,
//	type-specific handling, output check. A missing session_id starts a
//	new session whose ID is echoed back for follow-up questions.
//
// Response:
//
//	200 OK: QueryResponse
//	400 Bad Request: Missing query field or malformed input
//	500 Internal Server Error: Unexpected pipeline failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "query field is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := h.svc.orchestrator.HandleQuery(c.Request.Context(), req.Query, sessionID)
	if err != nil {
		if errors.Is(err, analyze.ErrMalformedQuery) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "MALFORMED_QUERY",
			})
			return
		}
		logger.Error("query pipeline failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	logger.Info("query handled",
		slog.String("session_id", sessionID),
		slog.String("confidence", string(resp.Confidence)),
		slog.Int("drug_count", resp.DrugCount),
		slog.Bool("safety_warning", resp.SafetyWarning),
	)

	c.JSON(http.StatusOK, QueryResponse{
		StructuredResponse: resp,
		SessionID:          sessionID,
		RequestID:          requestID,
	})
}

// HandleSuggest handles GET /v1/assistant/suggest.
//
// Description:
//
//	Returns close vocabulary matches for a possibly misspelled drug name.
//
// Query Parameters:
//
//	q: The surface form to match (required)
//
// Response:
//
//	200 OK: SuggestResponse
//	400 Bad Request: Missing q parameter
func (h *Handlers) HandleSuggest(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "q parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}
	c.JSON(http.StatusOK, SuggestResponse{
		Query:       q,
		Suggestions: h.svc.normalizer.Suggest(q, 5),
	})
}

// HandleListDrugs handles GET /v1/assistant/drugs. Returns the canonical
// vocabulary, sorted.
func (h *Handlers) HandleListDrugs(c *gin.Context) {
	names := h.svc.normalizer.CanonicalNames()
	c.JSON(http.StatusOK, gin.H{
		"drugs": names,
		"count": len(names),
	})
}

// HandleClearSession handles DELETE /v1/assistant/session/:id. Drops the
// session's conversation memory; unknown IDs are a no-op.
func (h *Handlers) HandleClearSession(c *gin.Context) {
	id := c.Param("id")
	h.svc.sessions.Clear(id)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "cleared": true})
}

// HandleHealth handles GET /v1/assistant/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/assistant/ready. The service is ready once
// construction succeeded; the check exists for orchestration parity.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"vocabulary": len(h.svc.normalizer.CanonicalNames()),
		"cached":     h.svc.cache.Len(),
	})
}
