// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
)

// Handler processes one replayed payload. A nil return confirms the
// entry; an error leaves it pending for the next start.
type Handler interface {
	HandlePayload(ctx context.Context, payload *models.ScrapePayload) error
}

// HandlerFunc adapts a closure to Handler.
type HandlerFunc func(ctx context.Context, payload *models.ScrapePayload) error

// HandlePayload implements Handler.
func (f HandlerFunc) HandlePayload(ctx context.Context, payload *models.ScrapePayload) error {
	return f(ctx, payload)
}

// ReplayResult summarizes one startup replay pass.
type ReplayResult struct {
	TotalPending int
	Replayed     int
	Failed       int
	Dropped      int
	Duration     time.Duration
}

// Replay runs every pending entry through the handler. Entries that
// process cleanly are confirmed; failures are recorded and left pending.
// Entries whose payload no longer unmarshals are dropped. Calling Replay
// repeatedly is safe because the pipeline downstream is idempotent.
func (j *Journal) Replay(ctx context.Context, handler Handler) (*ReplayResult, error) {
	if handler == nil {
		return nil, fmt.Errorf("replay handler cannot be nil")
	}

	start := time.Now()
	result := &ReplayResult{}

	entries, err := j.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending entries: %w", err)
	}
	result.TotalPending = len(entries)
	if result.TotalPending == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	logging.Info().Int("pending", result.TotalPending).Msg("journal replay starting")

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}

		var payload models.ScrapePayload
		if err := entry.UnmarshalPayload(&payload); err != nil {
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("dropping undecodable journal entry")
			if err := j.drop(entry.ID); err != nil {
				logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to drop journal entry")
			}
			result.Dropped++
			continue
		}

		if err := handler.HandlePayload(ctx, &payload); err != nil {
			logging.Err(err).
				Str("entry_id", entry.ID).
				Int64("source_id", payload.SourceID).
				Int("attempts", entry.Attempts+1).
				Msg("journal replay failed; entry stays pending")
			if err := j.Fail(ctx, entry.ID, err); err != nil {
				logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to record replay failure")
			}
			result.Failed++
			continue
		}

		if err := j.Confirm(ctx, entry.ID); err != nil {
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("failed to confirm replayed entry")
			result.Failed++
			continue
		}
		metrics.RecordJournalReplay()
		result.Replayed++
	}

	result.Duration = time.Since(start)
	logging.Info().
		Int("replayed", result.Replayed).
		Int("failed", result.Failed).
		Int("dropped", result.Dropped).
		Dur("duration", result.Duration).
		Msg("journal replay finished")
	return result, nil
}

// drop removes a pending entry without confirming it.
func (j *Journal) drop(entryID string) error {
	if err := j.ensureOpen(); err != nil {
		return err
	}
	err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixPending + entryID))
	})
	if err != nil {
		return fmt.Errorf("failed to drop entry: %w", err)
	}
	metrics.SetJournalPending(j.pending.Add(-1))
	return nil
}
