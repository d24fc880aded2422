// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"strings"
	"testing"
	"time"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

func drugs(names ...string) []datatypes.Drug {
	out := make([]datatypes.Drug, len(names))
	for i, n := range names {
		out[i] = datatypes.Drug{Name: n}
	}
	return out
}

func TestIsFollowUp(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)

	followUps := []string{
		"Can I take it with ibuprofen?",
		"can i take this with alcohol",
		"What about aspirin?",
		"how about with food",
		"with amoxicillin?",
		"and with warfarin",
	}
	for _, q := range followUps {
		if !c.IsFollowUp(q) {
			t.Errorf("IsFollowUp(%q) = false, want true", q)
		}
	}

	plain := []string{
		"What are the side effects of ibuprofen?",
		"Tell me about metformin",
	}
	for _, q := range plain {
		if c.IsFollowUp(q) {
			t.Errorf("IsFollowUp(%q) = true, want false", q)
		}
	}
}

func TestResolve_PronounSubstitution(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)
	c.Remember(drugs("Acetaminophen"), "s1")

	got, resolved := c.Resolve("Can I take it with ibuprofen?", "s1")
	if !resolved {
		t.Fatal("follow-up not resolved despite session memory")
	}
	if !strings.Contains(got, "Acetaminophen") {
		t.Errorf("resolved text = %q, want the remembered drug substituted", got)
	}
	if strings.Contains(strings.ToLower(got), " it ") {
		t.Errorf("resolved text still contains the pronoun: %q", got)
	}
}

func TestResolve_EllipticalRewrite(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)
	c.Remember(drugs("Warfarin"), "s1")

	got, resolved := c.Resolve("what about with aspirin?", "s1")
	if !resolved {
		t.Fatal("elliptical follow-up not resolved")
	}
	if !strings.Contains(got, "Warfarin") || !strings.Contains(got, "aspirin") {
		t.Errorf("rewrite = %q, want both drugs explicit", got)
	}
}

func TestResolve_NoMemoryPassesThrough(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)

	original := "Can I take it with ibuprofen?"
	got, resolved := c.Resolve(original, "fresh-session")
	if resolved {
		t.Fatal("resolved without any session memory")
	}
	if got != original {
		t.Errorf("text mutated without resolution: %q", got)
	}
}

func TestResolve_NonFollowUpPassesThrough(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)
	c.Remember(drugs("Ibuprofen"), "s1")

	original := "What are the side effects of metformin?"
	got, resolved := c.Resolve(original, "s1")
	if resolved || got != original {
		t.Errorf("plain query rewritten: %q", got)
	}
}

func TestRemember_CapsAtSizeMostRecentFirst(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)

	c.Remember(drugs("A"), "s1")
	c.Remember(drugs("B"), "s1")
	c.Remember(drugs("C"), "s1")
	c.Remember(drugs("D"), "s1")

	got := c.RecentDrugs("s1")
	want := []string{"D", "C", "B"}
	if len(got) != len(want) {
		t.Fatalf("RecentDrugs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RecentDrugs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRemember_RepeatMentionPromotesNotDuplicates(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)

	c.Remember(drugs("A", "B"), "s1")
	c.Remember(drugs("A"), "s1")

	got := c.RecentDrugs("s1")
	if len(got) != 2 {
		t.Fatalf("RecentDrugs = %v, want 2 entries", got)
	}
	if got[0] != "A" || got[1] != "B" {
		t.Errorf("RecentDrugs = %v, want [A B]", got)
	}
}

func TestRemember_SkipsUnresolvedDrugs(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)

	c.Remember([]datatypes.Drug{
		{Name: "Ibprofen", NeedsDisambiguation: true},
		{Name: ""},
	}, "s1")

	if got := c.RecentDrugs("s1"); got != nil {
		t.Errorf("RecentDrugs = %v, want nil", got)
	}
}

func TestIdleExpiry(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	c := NewContextManager(3, 5*time.Minute)
	c.now = func() time.Time { return current }

	c.Remember(drugs("Ibuprofen"), "s1")

	// Just under the timeout: memory survives.
	current = current.Add(5*time.Minute - time.Second)
	if got := c.RecentDrugs("s1"); len(got) != 1 {
		t.Fatalf("memory expired early: %v", got)
	}

	// RecentDrugs does not refresh the last-active stamp, so the idle
	// clock keeps running from the Remember.
	current = current.Add(2 * time.Second)
	if got := c.RecentDrugs("s1"); got != nil {
		t.Errorf("memory survived past the idle timeout: %v", got)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)

	c.Remember(drugs("Ibuprofen"), "s1")
	if got := c.RecentDrugs("s2"); got != nil {
		t.Errorf("session s2 sees s1's memory: %v", got)
	}
}

func TestClear(t *testing.T) {
	c := NewContextManager(3, 5*time.Minute)
	c.Remember(drugs("Ibuprofen"), "s1")
	c.Clear("s1")
	if got := c.RecentDrugs("s1"); got != nil {
		t.Errorf("RecentDrugs after Clear = %v, want nil", got)
	}
	// Clearing an unknown session is a no-op.
	c.Clear("never-existed")
}
