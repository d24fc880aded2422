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
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Knowledge Tables
// =============================================================================

//go:embed drug_aliases.yaml
var defaultDrugAliasesYAML []byte

//go:embed drug_classes.yaml
var defaultDrugClassesYAML []byte

//go:embed interactions.yaml
var defaultInteractionsYAML []byte

//go:embed dosage_guidance.yaml
var defaultDosageGuidanceYAML []byte

//go:embed jargon.yaml
var defaultJargonYAML []byte

// =============================================================================
// Drug Aliases
// =============================================================================

// DrugAliases maps surface forms (brand names, misspellings, international
// variants) to canonical generic names, all lowercase. Brand aliasing and
// international-variant normalization share one table; yaml.v3 rejects
// duplicate mapping keys, so a conflict between the two fails the load
// instead of being resolved silently.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type DrugAliases map[string]string

var (
	cachedDrugAliases DrugAliases
	drugAliasesOnce   sync.Once
	drugAliasesErr    error
)

// LoadDrugAliases loads and caches the alias table from the embedded YAML.
// Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - DrugAliases: The loaded mapping. Never nil on success.
//   - error: Non-nil if YAML parsing fails (including duplicate keys).
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadDrugAliases() (DrugAliases, error) {
	drugAliasesOnce.Do(func() {
		var raw map[string]string
		if err := yaml.Unmarshal(defaultDrugAliasesYAML, &raw); err != nil {
			drugAliasesErr = fmt.Errorf("parsing drug_aliases.yaml: %w", err)
			return
		}
		cachedDrugAliases = raw
		slog.Info("drug alias table loaded", slog.Int("alias_count", len(raw)))
	})
	return cachedDrugAliases, drugAliasesErr
}

// MustLoadDrugAliases loads the alias table or returns an empty map on error.
// Normalization still works without it, just without brand/misspelling
// canonicalization.
func MustLoadDrugAliases() DrugAliases {
	aliases, err := LoadDrugAliases()
	if err != nil {
		slog.Warn("drug alias table loading failed, continuing without aliases",
			slog.String("error", err.Error()),
		)
		return make(DrugAliases)
	}
	return aliases
}

// =============================================================================
// Drug Classes
// =============================================================================

// DrugClasses maps canonical generic names to pharmacological class tags.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type DrugClasses map[string]string

var (
	cachedDrugClasses DrugClasses
	drugClassesOnce   sync.Once
	drugClassesErr    error
)

// LoadDrugClasses loads and caches the class table from the embedded YAML.
func LoadDrugClasses() (DrugClasses, error) {
	drugClassesOnce.Do(func() {
		var raw map[string]string
		if err := yaml.Unmarshal(defaultDrugClassesYAML, &raw); err != nil {
			drugClassesErr = fmt.Errorf("parsing drug_classes.yaml: %w", err)
			return
		}
		cachedDrugClasses = raw
		slog.Info("drug class table loaded", slog.Int("class_count", len(raw)))
	})
	return cachedDrugClasses, drugClassesErr
}

// MustLoadDrugClasses loads the class table or returns an empty map on error.
func MustLoadDrugClasses() DrugClasses {
	classes, err := LoadDrugClasses()
	if err != nil {
		slog.Warn("drug class table loading failed, continuing without classes",
			slog.String("error", err.Error()),
		)
		return make(DrugClasses)
	}
	return classes
}

// =============================================================================
// Interaction Pairs
// =============================================================================

// PairInteraction is one known drug-pair interaction. Drugs is always two
// canonical generic names; the pair is unordered.
type PairInteraction struct {
	Drugs    []string `yaml:"drugs"`
	Severity string   `yaml:"severity"`
	Kind     string   `yaml:"kind"`
}

// ClassInteraction is one known class-pair interaction pattern.
type ClassInteraction struct {
	Classes  []string `yaml:"classes"`
	Severity string   `yaml:"severity"`
	Kind     string   `yaml:"kind"`
}

// InteractionTable holds the embedded interaction knowledge.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type InteractionTable struct {
	Pairs   []PairInteraction  `yaml:"pairs"`
	Classes []ClassInteraction `yaml:"classes"`
}

var (
	cachedInteractions *InteractionTable
	interactionsOnce   sync.Once
	interactionsErr    error
)

// LoadInteractionTable loads and caches the interaction knowledge table.
//
// # Outputs
//
//   - *InteractionTable: The loaded table. Never nil on success.
//   - error: Non-nil if parsing fails or an entry does not name exactly two
//     drugs/classes.
func LoadInteractionTable() (*InteractionTable, error) {
	interactionsOnce.Do(func() {
		var raw InteractionTable
		if err := yaml.Unmarshal(defaultInteractionsYAML, &raw); err != nil {
			interactionsErr = fmt.Errorf("parsing interactions.yaml: %w", err)
			return
		}
		for _, p := range raw.Pairs {
			if len(p.Drugs) != 2 {
				interactionsErr = fmt.Errorf("interactions.yaml: pair entry %v must name exactly 2 drugs", p.Drugs)
				return
			}
		}
		for _, c := range raw.Classes {
			if len(c.Classes) != 2 {
				interactionsErr = fmt.Errorf("interactions.yaml: class entry %v must name exactly 2 classes", c.Classes)
				return
			}
		}
		cachedInteractions = &raw
		slog.Info("interaction table loaded",
			slog.Int("pair_count", len(raw.Pairs)),
			slog.Int("class_count", len(raw.Classes)),
		)
	})
	return cachedInteractions, interactionsErr
}

// MustLoadInteractionTable loads the interaction table or returns an empty
// one on error. The analyzer then falls through to generated explanations.
func MustLoadInteractionTable() *InteractionTable {
	table, err := LoadInteractionTable()
	if err != nil {
		slog.Warn("interaction table loading failed, continuing with empty table",
			slog.String("error", err.Error()),
		)
		return &InteractionTable{}
	}
	return table
}

// =============================================================================
// Dosage Guidance
// =============================================================================

// DosageGuidance is the educational dosage entry for one drug.
type DosageGuidance struct {
	MaxDaily     string   `yaml:"max_daily"`
	Frequency    string   `yaml:"frequency"`
	Warnings     []string `yaml:"warnings"`
	DailyUseNote string   `yaml:"daily_use_note"`
}

// DosageTable maps canonical generic names to dosage guidance.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type DosageTable map[string]DosageGuidance

var (
	cachedDosageTable DosageTable
	dosageTableOnce   sync.Once
	dosageTableErr    error
)

// LoadDosageTable loads and caches the dosage guidance table.
func LoadDosageTable() (DosageTable, error) {
	dosageTableOnce.Do(func() {
		var raw DosageTable
		if err := yaml.Unmarshal(defaultDosageGuidanceYAML, &raw); err != nil {
			dosageTableErr = fmt.Errorf("parsing dosage_guidance.yaml: %w", err)
			return
		}
		cachedDosageTable = raw
		slog.Info("dosage guidance table loaded", slog.Int("drug_count", len(raw)))
	})
	return cachedDosageTable, dosageTableErr
}

// MustLoadDosageTable loads the dosage table or returns an empty map on error.
func MustLoadDosageTable() DosageTable {
	table, err := LoadDosageTable()
	if err != nil {
		slog.Warn("dosage guidance loading failed, continuing without it",
			slog.String("error", err.Error()),
		)
		return make(DosageTable)
	}
	return table
}

// =============================================================================
// Jargon Dictionary
// =============================================================================

// JargonTable maps medical jargon terms and phrases to plain-English
// replacements, all lowercase keys.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type JargonTable map[string]string

var (
	cachedJargonTable JargonTable
	jargonTableOnce   sync.Once
	jargonTableErr    error
)

// LoadJargonTable loads and caches the jargon dictionary.
func LoadJargonTable() (JargonTable, error) {
	jargonTableOnce.Do(func() {
		var raw JargonTable
		if err := yaml.Unmarshal(defaultJargonYAML, &raw); err != nil {
			jargonTableErr = fmt.Errorf("parsing jargon.yaml: %w", err)
			return
		}
		cachedJargonTable = raw
		slog.Info("jargon dictionary loaded", slog.Int("term_count", len(raw)))
	})
	return cachedJargonTable, jargonTableErr
}

// MustLoadJargonTable loads the jargon dictionary or returns an empty map
// on error.
func MustLoadJargonTable() JargonTable {
	table, err := LoadJargonTable()
	if err != nil {
		slog.Warn("jargon dictionary loading failed, continuing without it",
			slog.String("error", err.Error()),
		)
		return make(JargonTable)
	}
	return table
}
