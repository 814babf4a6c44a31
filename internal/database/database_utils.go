// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"context"
	"fmt"
	"time"
)

const (
	// defaultQueryTimeout bounds individual catalog queries.
	defaultQueryTimeout = 30 * time.Second

	// schemaTimeout bounds schema creation. First startup on a slow disk
	// can take noticeably longer than a regular query.
	schemaTimeout = 60 * time.Second
)

// ensureContext guarantees a deadline on the given context. Callers that
// already carry a deadline keep it; nil or unbounded contexts get the
// default query timeout.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultQueryTimeout)
	}
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, defaultQueryTimeout)
	}
	return context.WithCancel(ctx)
}

// schemaContext returns a context for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), schemaTimeout)
}

// Checkpoint forces a WAL checkpoint, flushing pending writes into the
// main database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}
