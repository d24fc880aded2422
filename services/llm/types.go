// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the generation backend for answer synthesis and
// jargon translation. The assistant degrades gracefully without it: every
// caller must tolerate a nil or failing client and fall back to template
// or extract-based answers.
package llm

import (
	"context"
	"errors"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// ErrBudgetExhausted is returned when the client-side request budget for
// the current window is spent. Callers should fall back to non-generative
// answers rather than queue.
var ErrBudgetExhausted = errors.New("llm: request budget exhausted")

// GenerationParams holds optional generation parameters. Nil pointer
// fields are omitted from the request so the backend applies its own
// defaults.
type GenerationParams struct {
	Temperature   *float32
	MaxTokens     *int
	TopP          *float32
	Stop          []string
	ModelOverride string
}

// LLMClient is the text generation interface.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type LLMClient interface {
	// Generate produces a completion for a single prompt, wrapping it in
	// the assistant persona.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Chat produces a completion for a multi-turn conversation.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
}
