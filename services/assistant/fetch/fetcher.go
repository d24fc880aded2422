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

// =============================================================================
// MultiSourceFetcher — Fan-Out, Merge, Degrade
// =============================================================================
//
// One drug lookup fans out to the primary source (openFDA) plus every
// configured secondary (RxNav, Wikipedia). The primary is fetched first and
// synchronously — its fields win every merge conflict, so there is nothing
// useful to do in parallel with it failing. Secondaries then run
// concurrently under a shared errgroup.
//
// Merge rule: primary fields are copied first; each secondary, in
// registration order, fills only the keys that are still empty. A
// lower-priority source can never overwrite a higher-priority one.
//
// Degradation ladder on total upstream failure:
//
//	1. Stale in-memory cache entry (expired but still resident)
//	2. BadgerDB snapshot from a previous run
//	3. ErrUnavailable (transport failures) or ErrNotFound (no source
//	   has ever had data for the name)

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

// ErrNotFound is returned when no provider has data for the requested drug.
// This is a content outcome, not a failure: callers should render it as a
// "drug not found" answer rather than an internal error.
var ErrNotFound = errors.New("fetch: drug not found in any source")

// ErrUnavailable is returned when every provider failed for operational
// reasons (timeouts, network errors) and no cached or persisted fallback
// exists. Distinct from ErrNotFound: the drug may well exist.
var ErrUnavailable = errors.New("fetch: all sources unavailable")

// ErrRateLimited is returned when the shared upstream-call budget for the
// current window is exhausted. Match with errors.Is; the concrete error is
// a *RateLimitError carrying the retry hint.
var ErrRateLimited = errors.New("fetch: rate limited")

// RateLimitError reports an exhausted upstream-call budget together with
// the duration after which the oldest window slot frees up.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("fetch: rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) succeed for *RateLimitError.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// =============================================================================
// MultiSourceFetcher
// =============================================================================

// MultiSourceFetcher assembles a merged drug record from the primary source
// and all secondaries, with caching, rate limiting, and persistent-snapshot
// degradation.
//
// # Thread Safety
//
// Safe for concurrent use. The cache and rate limiter carry their own locks;
// providers are required to be concurrency-safe.
type MultiSourceFetcher struct {
	primary     Provider
	secondaries []Provider

	cache   *ResultCache
	limiter *RateLimiter
	store   SnapshotStore // may be nil: snapshot persistence disabled

	primaryTimeout   time.Duration
	secondaryTimeout time.Duration

	logger *slog.Logger
}

// FetcherOptions configures a MultiSourceFetcher. Zero values select the
// documented defaults.
type FetcherOptions struct {
	// Cache holds merged records for the hot path. Must not be nil.
	Cache *ResultCache

	// Limiter bounds upstream calls per sliding window. Must not be nil;
	// construct with limit<=0 to disable limiting.
	Limiter *RateLimiter

	// Store persists merged records across restarts. May be nil.
	Store SnapshotStore

	// PrimaryTimeout bounds the synchronous primary fetch. Default 12s.
	PrimaryTimeout time.Duration

	// SecondaryTimeout bounds each concurrent secondary fetch. Default 4s.
	SecondaryTimeout time.Duration

	Logger *slog.Logger
}

// NewMultiSourceFetcher creates a MultiSourceFetcher.
//
// # Inputs
//
//   - primary: The authoritative source whose fields win merges. Must not be nil.
//   - secondaries: Gap-filling sources, consulted in the given order. May be empty.
//   - opts: Cache and Limiter are required; everything else defaults.
func NewMultiSourceFetcher(primary Provider, secondaries []Provider, opts FetcherOptions) *MultiSourceFetcher {
	if primary == nil {
		panic("NewMultiSourceFetcher: primary must not be nil")
	}
	if opts.Cache == nil || opts.Limiter == nil {
		panic("NewMultiSourceFetcher: Cache and Limiter must not be nil")
	}
	if opts.PrimaryTimeout <= 0 {
		opts.PrimaryTimeout = 12 * time.Second
	}
	if opts.SecondaryTimeout <= 0 {
		opts.SecondaryTimeout = 4 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &MultiSourceFetcher{
		primary:          primary,
		secondaries:      secondaries,
		cache:            opts.Cache,
		limiter:          opts.Limiter,
		store:            opts.Store,
		primaryTimeout:   opts.PrimaryTimeout,
		secondaryTimeout: opts.SecondaryTimeout,
		logger:           opts.Logger,
	}
}

// FetchDrug returns the merged record for a generic drug name.
//
// # Description
//
// Order of consultation: fresh cache entry, rate-limit gate, live fan-out
// (primary then concurrent secondaries), merge, cache+snapshot write. On
// total live failure the stale cache entry and then the snapshot store are
// tried, each surfaced with CoverageStale.
//
// # Outputs
//
//   - *datatypes.DrugRecord: Merged record. Nil only when error is non-nil.
//   - error: ErrRateLimited, ErrNotFound, ErrUnavailable, or ctx error.
//
// # Thread Safety
//
// Safe for concurrent use.
func (f *MultiSourceFetcher) FetchDrug(ctx context.Context, drug string) (*datatypes.DrugRecord, error) {
	if record, ok := f.cache.Get(drug); ok {
		return record, nil
	}

	if ok, retryAfter := f.limiter.TryAcquire(); !ok {
		recordRateLimited()
		f.logger.Warn("upstream call budget exhausted",
			slog.String("drug", drug),
			slog.Duration("retry_after", retryAfter),
		)
		// A stale record beats no record; fail fast only with nothing to serve.
		if fallback := f.fallback(ctx, drug); fallback != nil {
			recordMergeCoverage(string(datatypes.CoverageStale))
			return fallback, nil
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	results := f.fanOut(ctx, drug)
	record, err := f.merge(drug, results)
	if err != nil {
		if fallback := f.fallback(ctx, drug); fallback != nil {
			recordMergeCoverage(string(datatypes.CoverageStale))
			return fallback, nil
		}
		recordMergeCoverage(string(datatypes.CoverageUnavailable))
		return nil, err
	}

	f.cache.Put(drug, record)
	f.persist(ctx, record)
	recordMergeCoverage(string(record.Coverage))
	return record, nil
}

// fanOut queries the primary synchronously, then all secondaries
// concurrently. The returned slice is ordered: index 0 is the primary,
// followed by secondaries in registration order, so merge precedence is
// simply slice order.
func (f *MultiSourceFetcher) fanOut(ctx context.Context, drug string) []*datatypes.ProviderResult {
	results := make([]*datatypes.ProviderResult, 1+len(f.secondaries))
	results[0] = f.callProvider(ctx, f.primary, drug, f.primaryTimeout)

	// Join on index so registration order survives concurrent completion.
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range f.secondaries {
		g.Go(func() error {
			results[1+i] = f.callProvider(gctx, p, drug, f.secondaryTimeout)
			return nil
		})
	}
	_ = g.Wait() // callProvider never returns an error through the group
	return results
}

// callProvider runs one provider fetch under its own deadline, recording
// metrics and folding any failure into the result's Err field.
func (f *MultiSourceFetcher) callProvider(ctx context.Context, p Provider, drug string, timeout time.Duration) *datatypes.ProviderResult {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := p.Fetch(fctx, drug)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		recordProviderCall(p.Name(), "ok", elapsed)
		f.logger.Debug("provider fetch ok",
			slog.String("provider", p.Name()),
			slog.String("drug", drug),
			slog.Duration("elapsed", elapsed),
			slog.Int("field_count", len(result.Fields)),
		)
		return result
	case errors.Is(err, ErrNoData):
		recordProviderCall(p.Name(), "no_data", elapsed)
		return &datatypes.ProviderResult{Provider: p.Name(), Err: err, FetchedAt: time.Now()}
	default:
		recordProviderCall(p.Name(), "error", elapsed)
		f.logger.Warn("provider fetch failed",
			slog.String("provider", p.Name()),
			slog.String("drug", drug),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return &datatypes.ProviderResult{Provider: p.Name(), Err: err, FetchedAt: time.Now()}
	}
}

// merge combines provider results into one record. results[0] is the
// primary; later entries fill only keys the earlier ones left empty.
func (f *MultiSourceFetcher) merge(drug string, results []*datatypes.ProviderResult) (*datatypes.DrugRecord, error) {
	fields := make(map[string]string)
	var sources []string
	succeeded, failed, noData := 0, 0, 0

	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Err != nil {
			if errors.Is(r.Err, ErrNoData) {
				noData++
			} else {
				failed++
			}
			continue
		}
		succeeded++
		sources = append(sources, r.Provider)
		for key, value := range r.Fields {
			if _, taken := fields[key]; !taken {
				fields[key] = value
			}
		}
	}

	if succeeded == 0 {
		if failed == 0 {
			return nil, fmt.Errorf("%q: %w", drug, ErrNotFound)
		}
		return nil, fmt.Errorf("%q: %w", drug, ErrUnavailable)
	}

	coverage := datatypes.CoverageFull
	primaryOK := results[0] != nil && results[0].Err == nil
	if !primaryOK || failed+noData > 0 {
		coverage = datatypes.CoveragePartial
	}

	return &datatypes.DrugRecord{
		Drug:     drug,
		Fields:   fields,
		Sources:  sources,
		Coverage: coverage,
		MergedAt: time.Now(),
	}, nil
}

// fallback tries the degradation ladder: stale cache entry first, then the
// persistent snapshot. Either is re-tagged CoverageStale so the response
// layer can disclose its age.
func (f *MultiSourceFetcher) fallback(ctx context.Context, drug string) *datatypes.DrugRecord {
	if record, ok := f.cache.GetStale(drug); ok {
		f.logger.Warn("serving stale cached record", slog.String("drug", drug))
		stale := *record
		stale.Coverage = datatypes.CoverageStale
		return &stale
	}
	if f.store == nil {
		return nil
	}
	record, err := f.store.Load(ctx, drug)
	if err != nil {
		f.logger.Warn("snapshot load failed",
			slog.String("drug", drug),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if record == nil {
		return nil
	}
	f.logger.Warn("serving persisted snapshot record", slog.String("drug", drug))
	record.Coverage = datatypes.CoverageStale
	return record
}

// persist writes the merged record to the snapshot store, if configured.
// Failure is logged and swallowed: the record will be re-fetched next time.
func (f *MultiSourceFetcher) persist(ctx context.Context, record *datatypes.DrugRecord) {
	if f.store == nil {
		return
	}
	if err := f.store.Save(ctx, record); err != nil {
		f.logger.Warn("snapshot save failed",
			slog.String("drug", record.Drug),
			slog.String("error", err.Error()),
		)
	}
}
