// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fetch retrieves and merges drug information from the external
// data providers under a shared rate limit and a TTL-bounded result cache.
//
// One provider (openFDA) is the designated primary: its fields win every
// merge conflict. The remaining providers are secondaries that fill gaps
// only, fetched concurrently and individually expendable.
package fetch

import (
	"context"
	"errors"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// Canonical field names shared by all providers. A provider maps its
// upstream payload into this vocabulary so the merge is a plain map union.
const (
	FieldDescription       = "description"
	FieldUses              = "uses"
	FieldSideEffects       = "side_effects"
	FieldWarnings          = "warnings"
	FieldInteractions      = "interactions"
	FieldDosage            = "dosage"
	FieldContraindications = "contraindications"
	FieldBrandNames        = "brand_names"
	FieldRxCUI             = "rxcui"
)

// ErrNoData is returned by a provider when the upstream answered but had
// no record for the drug. Distinguished from transport errors so the
// fetcher can tell "not found" from "temporarily unreachable".
var ErrNoData = errors.New("provider has no data for drug")

// Provider is one external drug-information source.
//
// Description:
//
//	Implementations are plain REST clients. Fetch must honor ctx
//	cancellation and must never panic on malformed upstream payloads —
//	a bad payload is an error return, isolated by the fetcher.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the stable provider identifier used in logs, metrics,
	// and ProviderResult.Provider.
	Name() string

	// Fetch retrieves the provider's payload for one drug name.
	//
	// Inputs:
	//   - ctx: Context carrying the per-provider timeout.
	//   - drugName: Canonical generic name.
	//
	// Outputs:
	//   - *datatypes.ProviderResult: Extracted fields. Nil on error.
	//   - error: ErrNoData when the drug is unknown upstream; any other
	//     non-nil error is a transient provider failure.
	Fetch(ctx context.Context, drugName string) (*datatypes.ProviderResult, error)
}
