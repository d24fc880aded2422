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
// SnapshotStore — Drug Record Persistence
// =============================================================================
//
// Merged drug records are expensive to assemble (two or three upstream API
// calls, 1-12s wall time) but the underlying label data changes rarely. This
// store persists the merged record in BadgerDB so that a restart — or an
// outage of every upstream provider — does not leave the assistant with
// nothing to say about a drug it has already described.
//
// Storage layout:
//
//	drug/rec/v1/{generic name}  →  gob-encoded datatypes.DrugRecord
//	                               TTL: 7 days
//
// The in-memory ResultCache remains the hot path (15-minute TTL); this store
// is the warm fallback consulted only when the cache misses and the live
// fetch degrades.

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/ryanthaam/MedExplain/services/assistant/storage/badger"
	"github.com/ryanthaam/MedExplain/services/orchestrator/datatypes"
)

// snapshotDefaultTTL is the default lifetime of a persisted drug record.
// Label data is stable on the order of months; 7 days keeps snapshots fresh
// without re-fetching on every restart.
const snapshotDefaultTTL = 7 * 24 * time.Hour

// snapshotKeyPrefix is prepended to the generic drug name to form the
// BadgerDB key. Versioned (v1) to allow future format changes without
// collision.
const snapshotKeyPrefix = "drug/rec/v1/"

// errSnapshotMiss distinguishes "key not found" from a genuine storage error
// inside Load.
var errSnapshotMiss = errors.New("snapshot miss")

// =============================================================================
// SnapshotStore Interface
// =============================================================================

// SnapshotStore persists merged drug records across service restarts.
//
// # Description
//
// Both methods are nil-safe at the call site: the MultiSourceFetcher checks
// for a nil SnapshotStore and skips persistence, operating in memory-only
// mode. This is the correct behavior for tests and for deployments that do
// not configure a cache directory.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Load retrieves the persisted record for a generic drug name.
	//
	// Returns (nil, nil) on miss (key absent or TTL expired).
	// Returns (nil, error) on storage failure.
	Load(ctx context.Context, drug string) (*datatypes.DrugRecord, error)

	// Save persists a merged drug record. The store applies its TTL
	// automatically. Persistence failure is non-fatal for the caller; the
	// record will simply be re-fetched next time.
	Save(ctx context.Context, record *datatypes.DrugRecord) error
}

// =============================================================================
// BadgerSnapshotStore
// =============================================================================

// BadgerSnapshotStore implements SnapshotStore backed by a BadgerDB instance.
//
// # Description
//
// Records are gob-encoded. TTL is enforced by BadgerDB's native GC — no
// application-level expiry check is needed. Expired keys return
// ErrKeyNotFound, which this store treats as a miss.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type BadgerSnapshotStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerSnapshotStore creates a BadgerSnapshotStore backed by the given
// DB instance.
//
// # Inputs
//
//   - db: Opened BadgerDB wrapper. Must not be nil.
//   - ttl: Lifetime for each record. Pass 0 to use the default (7 days).
//   - logger: Logger for hit/miss diagnostics. May be nil.
//
// # Thread Safety
//
// The returned store is safe for concurrent use.
func NewBadgerSnapshotStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerSnapshotStore {
	if db == nil {
		panic("NewBadgerSnapshotStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = snapshotDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerSnapshotStore{db: db, ttl: ttl, logger: logger}
}

// Load retrieves the persisted record for a generic drug name.
func (s *BadgerSnapshotStore) Load(ctx context.Context, drug string) (*datatypes.DrugRecord, error) {
	key := snapshotKey(drug)

	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errSnapshotMiss
		}
		if err != nil {
			return fmt.Errorf("get snapshot key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errSnapshotMiss) {
		s.logger.Debug("drug snapshot: miss", slog.String("drug", drug))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("drug snapshot load: %w", err)
	}

	var record datatypes.DrugRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&record); err != nil {
		return nil, fmt.Errorf("drug snapshot decode: %w", err)
	}

	s.logger.Debug("drug snapshot: hit",
		slog.String("drug", drug),
		slog.Int("field_count", len(record.Fields)),
	)
	return &record, nil
}

// Save persists a merged drug record with the configured TTL.
func (s *BadgerSnapshotStore) Save(ctx context.Context, record *datatypes.DrugRecord) error {
	if record == nil || record.Drug == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record); err != nil {
		return fmt.Errorf("drug snapshot encode: %w", err)
	}

	key := snapshotKey(record.Drug)
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("drug snapshot save: %w", err)
	}

	s.logger.Debug("drug snapshot: saved",
		slog.String("drug", record.Drug),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

// snapshotKey builds the BadgerDB key for a generic drug name.
func snapshotKey(drug string) []byte {
	return []byte(snapshotKeyPrefix + strings.ToLower(strings.TrimSpace(drug)))
}
