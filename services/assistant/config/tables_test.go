// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"strings"
	"testing"
)

func TestLoadDrugAliases(t *testing.T) {
	aliases, err := LoadDrugAliases()
	if err != nil {
		t.Fatalf("LoadDrugAliases: %v", err)
	}
	if len(aliases) == 0 {
		t.Fatal("alias table is empty")
	}
	if got := aliases["tylenol"]; got != "acetaminophen" {
		t.Errorf("aliases[tylenol] = %q, want acetaminophen", got)
	}
	if got := aliases["advil"]; got != "ibuprofen" {
		t.Errorf("aliases[advil] = %q, want ibuprofen", got)
	}
	// Alias keys and targets are stored lowercase.
	for k, v := range aliases {
		if k != strings.ToLower(k) || v != strings.ToLower(v) {
			t.Errorf("alias entry not lowercase: %q -> %q", k, v)
		}
	}
}

func TestLoadDrugClasses(t *testing.T) {
	classes, err := LoadDrugClasses()
	if err != nil {
		t.Fatalf("LoadDrugClasses: %v", err)
	}
	if got := classes["ibuprofen"]; got != "nsaid" {
		t.Errorf("classes[ibuprofen] = %q, want nsaid", got)
	}
	if got := classes["warfarin"]; got != "anticoagulant" {
		t.Errorf("classes[warfarin] = %q, want anticoagulant", got)
	}
}

func TestLoadInteractionTable(t *testing.T) {
	table, err := LoadInteractionTable()
	if err != nil {
		t.Fatalf("LoadInteractionTable: %v", err)
	}
	if len(table.Pairs) == 0 || len(table.Classes) == 0 {
		t.Fatal("interaction table missing pair or class entries")
	}
	for _, p := range table.Pairs {
		if len(p.Drugs) != 2 {
			t.Errorf("pair entry %v does not name exactly 2 drugs", p.Drugs)
		}
		if p.Severity == "" || p.Kind == "" {
			t.Errorf("pair entry %v missing severity or kind", p.Drugs)
		}
	}
	for _, c := range table.Classes {
		if len(c.Classes) != 2 {
			t.Errorf("class entry %v does not name exactly 2 classes", c.Classes)
		}
	}
}

func TestLoadDosageTable(t *testing.T) {
	table, err := LoadDosageTable()
	if err != nil {
		t.Fatalf("LoadDosageTable: %v", err)
	}
	g, ok := table["ibuprofen"]
	if !ok {
		t.Fatal("dosage table missing ibuprofen")
	}
	if g.MaxDaily == "" || g.Frequency == "" || g.DailyUseNote == "" {
		t.Errorf("ibuprofen guidance incomplete: %+v", g)
	}
	if len(g.Warnings) == 0 {
		t.Error("ibuprofen guidance has no warnings")
	}
}

func TestLoadJargonTable(t *testing.T) {
	table, err := LoadJargonTable()
	if err != nil {
		t.Fatalf("LoadJargonTable: %v", err)
	}
	if got := table["hepatotoxicity"]; got != "liver damage" {
		t.Errorf("jargon[hepatotoxicity] = %q, want liver damage", got)
	}
}
