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
	"testing"
	"time"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

func testRecord(drug string) *datatypes.DrugRecord {
	return &datatypes.DrugRecord{
		Drug:     drug,
		Fields:   map[string]string{FieldDescription: "a " + drug + " record"},
		Sources:  []string{"openfda"},
		Coverage: datatypes.CoverageFull,
		MergedAt: time.Now(),
	}
}

func TestResultCache_PutGet(t *testing.T) {
	c := NewResultCache(15 * time.Minute)
	c.Put("ibuprofen", testRecord("ibuprofen"))

	got, ok := c.Get("ibuprofen")
	if !ok {
		t.Fatal("expected fresh hit")
	}
	if got.Drug != "ibuprofen" {
		t.Errorf("Drug = %q, want %q", got.Drug, "ibuprofen")
	}
}

func TestResultCache_KeyNormalization(t *testing.T) {
	c := NewResultCache(15 * time.Minute)
	c.Put("  Ibuprofen ", testRecord("ibuprofen"))

	if _, ok := c.Get("ibuprofen"); !ok {
		t.Error("lowercase lookup missed a record stored with spacing and case")
	}
	if _, ok := c.Get("IBUPROFEN"); !ok {
		t.Error("uppercase lookup missed")
	}
}

func TestResultCache_ExpiryIsLogicalBeforePhysical(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	c := NewResultCache(15 * time.Minute)
	c.now = func() time.Time { return current }

	c.Put("aspirin", testRecord("aspirin"))

	// Just inside the TTL: still a hit.
	current = current.Add(15 * time.Minute)
	if _, ok := c.Get("aspirin"); !ok {
		t.Fatal("entry at exactly TTL age should still be served")
	}

	// Past the TTL: treated as absent even though Sweep never ran. The
	// entry stays physically present for GetStale until the sweep.
	current = current.Add(time.Second)
	if _, ok := c.Get("aspirin"); ok {
		t.Fatal("expired entry served as fresh")
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1 (physical removal is Sweep's job)", got)
	}
}

func TestResultCache_GetStaleReturnsExpiredEntry(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	c := NewResultCache(time.Minute)
	c.now = func() time.Time { return current }

	c.Put("warfarin", testRecord("warfarin"))
	current = current.Add(time.Hour)

	if _, ok := c.Get("warfarin"); ok {
		t.Fatal("expired entry served by Get")
	}

	got, ok := c.GetStale("warfarin")
	if !ok {
		t.Fatal("GetStale missed an expired but present entry")
	}
	if got.Drug != "warfarin" {
		t.Errorf("Drug = %q, want %q", got.Drug, "warfarin")
	}
}

func TestResultCache_SweepRemovesOnlyExpired(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	c := NewResultCache(time.Minute)
	c.now = func() time.Time { return current }

	c.Put("old", testRecord("old"))
	current = current.Add(2 * time.Minute)
	c.Put("fresh", testRecord("fresh"))

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry removed by sweep")
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestResultCache_PutNilIsNoOp(t *testing.T) {
	c := NewResultCache(time.Minute)
	c.Put("nothing", nil)
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d after nil Put, want 0", got)
	}
}
