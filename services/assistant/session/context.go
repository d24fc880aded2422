// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session keeps the short-lived conversational memory that lets
// follow-up questions like "can I take it with ibuprofen?" resolve "it" to
// the drug discussed in the previous turn.
package session

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// followupPatterns matches queries whose subject is implicit. Matched
// case-insensitively against the trimmed query.
var followupPatterns = []*regexp.Regexp{
	// Direct pronoun references
	regexp.MustCompile(`(?i)can i take it with`),
	regexp.MustCompile(`(?i)take it together with`),
	regexp.MustCompile(`(?i)combine it with`),
	regexp.MustCompile(`(?i)mix it with`),
	regexp.MustCompile(`(?i)use it with`),

	// "this" references
	regexp.MustCompile(`(?i)can i take this with`),
	regexp.MustCompile(`(?i)take this together with`),
	regexp.MustCompile(`(?i)combine this with`),
	regexp.MustCompile(`(?i)mix this with`),

	// "that" references
	regexp.MustCompile(`(?i)can i take that with`),
	regexp.MustCompile(`(?i)take that together with`),
	regexp.MustCompile(`(?i)combine that with`),

	// Elliptical continuations
	regexp.MustCompile(`(?i)^with `),
	regexp.MustCompile(`(?i)together with`),
	regexp.MustCompile(`(?i)along with`),
	regexp.MustCompile(`(?i)and with`),

	// "What about" forms
	regexp.MustCompile(`(?i)what about with`),
	regexp.MustCompile(`(?i)what about`),
	regexp.MustCompile(`(?i)how about with`),
	regexp.MustCompile(`(?i)how about`),
}

// pronounRef finds the reference token to substitute when rewriting a
// pronoun-style follow-up.
var pronounRef = regexp.MustCompile(`(?i)\b(it|this|that)\b`)

// ellipticalPrefix strips the leading continuation marker from elliptical
// follow-ups ("what about with amoxicillin" -> "amoxicillin").
var ellipticalPrefix = regexp.MustCompile(`(?i)^(what about with|what about|how about with|how about|and with|together with|along with|with|and)\s+`)

// memory is the per-session state. Entries are most-recent-first, never
// duplicated, capped at the manager's configured size.
type memory struct {
	mu         sync.Mutex
	drugs      []string // canonical names, most recent first
	lastActive time.Time
}

// ContextManager owns the per-session conversational memory.
//
// Description:
//
//	Memory is process-lifetime only and scoped by session ID. Expiry is
//	lazy: any access first purges a session whose idle time exceeded the
//	timeout, so an expired session behaves exactly like a fresh one.
//	Unknown session IDs are silently treated as fresh memory.
//
//	Read-only lookups (IsFollowUp, Resolve, RecentDrugs) never mutate
//	memory beyond the lazy purge; only Remember inserts.
//
// Thread Safety: Safe for concurrent use. The registry and each session
// are guarded separately, so unrelated sessions never contend.
type ContextManager struct {
	mu       sync.RWMutex
	sessions map[string]*memory

	size        int
	idleTimeout time.Duration

	now func() time.Time
}

// NewContextManager creates a ContextManager.
//
// Inputs:
//   - size: Maximum drugs remembered per session. Pass 0 for the default (3).
//   - idleTimeout: Idle duration after which a session's memory expires.
//     Pass 0 for the default (5 minutes).
//
// Outputs:
//   - *ContextManager: Ready to use. Never nil.
func NewContextManager(size int, idleTimeout time.Duration) *ContextManager {
	if size <= 0 {
		size = 3
	}
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &ContextManager{
		sessions:    make(map[string]*memory),
		size:        size,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// IsFollowUp reports whether the text matches a follow-up pattern. This is
// a pure text check; whether a substitution actually happens also depends
// on the session having unexpired memory.
func (c *ContextManager) IsFollowUp(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, pattern := range followupPatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// Resolve substitutes the conversational reference in a follow-up query
// with the most recently mentioned drug's canonical name.
//
// Description:
//
//	Pronoun forms have the pronoun replaced in place. Elliptical forms
//	("what about with X", "and with X") are rewritten into an explicit
//	combination question so downstream classification sees both drugs.
//	When the text is not a follow-up, or the session's memory is empty or
//	expired, the text passes through unchanged and resolved is false —
//	the caller must then treat the query as a plain one.
//
// Inputs:
//   - text: The raw query text.
//   - sessionID: The conversation session. Unknown IDs are fine.
//
// Outputs:
//   - string: The (possibly rewritten) query text.
//   - bool: True when a substitution happened.
func (c *ContextManager) Resolve(text, sessionID string) (string, bool) {
	if !c.IsFollowUp(text) {
		return text, false
	}

	recent := c.RecentDrugs(sessionID)
	if len(recent) == 0 {
		return text, false
	}
	subject := recent[0]

	trimmed := strings.TrimSpace(text)
	if pronounRef.MatchString(trimmed) {
		return pronounRef.ReplaceAllStringFunc(trimmed, func(string) string {
			return subject
		}), true
	}

	// Elliptical form: rebuild an explicit combination question.
	rest := ellipticalPrefix.ReplaceAllString(trimmed, "")
	rest = strings.TrimRight(rest, "?!. ")
	if rest == "" {
		return text, false
	}
	return "can I take " + subject + " together with " + rest + "?", true
}

// Remember promotes each resolved drug to the front of the session's
// memory, deduplicating by canonical name and truncating to the configured
// size, then stamps the session's last-active time.
//
// Drugs still needing disambiguation are not remembered; a later turn
// should not resolve "it" to a guess.
func (c *ContextManager) Remember(drugs []datatypes.Drug, sessionID string) {
	names := make([]string, 0, len(drugs))
	for _, d := range drugs {
		if d.NeedsDisambiguation || d.Name == "" {
			continue
		}
		names = append(names, d.Name)
	}
	if len(names) == 0 {
		return
	}

	m := c.session(sessionID, true)
	m.mu.Lock()
	defer m.mu.Unlock()
	c.purgeLocked(m)

	// Promote in mention order: the last drug mentioned ends up most
	// recent and becomes the subject of the next follow-up.
	for _, name := range names {
		m.drugs = promote(m.drugs, name)
	}
	if len(m.drugs) > c.size {
		m.drugs = m.drugs[:c.size]
	}
	m.lastActive = c.now()
}

// RecentDrugs returns the session's remembered canonical names, most
// recent first. Returns nil for unknown or expired sessions.
func (c *ContextManager) RecentDrugs(sessionID string) []string {
	m := c.session(sessionID, false)
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c.purgeLocked(m)
	if len(m.drugs) == 0 {
		return nil
	}
	out := make([]string, len(m.drugs))
	copy(out, m.drugs)
	return out
}

// Clear drops a session's memory entirely.
func (c *ContextManager) Clear(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// session returns the memory for a session ID, creating it when create is
// true. Returns nil when absent and create is false.
func (c *ContextManager) session(sessionID string, create bool) *memory {
	c.mu.RLock()
	m := c.sessions[sessionID]
	c.mu.RUnlock()
	if m != nil || !create {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m = c.sessions[sessionID]; m == nil {
		m = &memory{}
		c.sessions[sessionID] = m
	}
	return m
}

// purgeLocked clears entries when the session has been idle past the
// timeout. Caller holds m.mu.
func (c *ContextManager) purgeLocked(m *memory) {
	if len(m.drugs) == 0 {
		return
	}
	if c.now().Sub(m.lastActive) >= c.idleTimeout {
		m.drugs = nil
	}
}

// promote moves name to the front of list, inserting it if absent.
func promote(list []string, name string) []string {
	for i, existing := range list {
		if strings.EqualFold(existing, name) {
			copy(list[1:i+1], list[:i])
			list[0] = name
			return list
		}
	}
	return append([]string{name}, list...)
}
