// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps a BadgerDB instance behind context-aware transaction
// helpers. The DB is service infrastructure: opened once at startup, owned
// by main, shared by every store built on top of it.
package badger

import (
	"context"
	"fmt"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// DB is an opened BadgerDB handle.
//
// Thread Safety: Safe for concurrent use. Badger transactions are
// per-goroutine.
type DB struct {
	db *dgbadger.DB
}

// Open opens (or creates) a BadgerDB at dir.
//
// Description:
//
//	Badger's own chatty logger is disabled; the caller's slog output is the
//	single log stream. The returned DB must be closed by the caller.
//
// Inputs:
//   - dir: Directory for the value log and LSM tree. Created if absent.
//
// Outputs:
//   - *DB: The opened handle.
//   - error: Non-nil if the directory cannot be opened.
func Open(dir string) (*DB, error) {
	opts := dgbadger.DefaultOptions(dir).WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	return &DB{db: db}, nil
}

// Close releases the database. Safe to call once after all stores are done.
func (d *DB) Close() error {
	return d.db.Close()
}

// WithTxn runs fn inside a read-write transaction, honoring ctx cancellation
// before starting.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction, honoring ctx
// cancellation before starting.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// RunGC performs one round of value-log garbage collection. Returns
// badger.ErrNoRewrite when nothing needed collecting; callers may ignore it.
func (d *DB) RunGC(discardRatio float64) error {
	return d.db.RunValueLogGC(discardRatio)
}
