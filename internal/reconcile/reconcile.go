// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package reconcile cancels stale catalog events that a source has
// stopped reporting.
//
// A confirmed event inside the reconcile window is orphaned when the
// current scrape no longer contains its (kennel, date) key. Orphans are
// cancelled only when no other source has raw evidence for them, so an
// event corroborated by a second source survives one source dropping
// it. Cancellation never reverts through this path.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/resolver"
)

// DefaultWindowDays bounds the reconcile window around today when the
// caller does not supply one.
const DefaultWindowDays = 30

// Store is the persistence surface the reconciler needs. *database.DB
// satisfies it.
type Store interface {
	resolver.Store
	LinkedKennelIDs(ctx context.Context, sourceID int64) ([]int64, error)
	ConfirmedEventsInWindow(ctx context.Context, kennelIDs []int64, from, to time.Time) ([]models.Event, error)
	HasRawEventFromOtherSource(ctx context.Context, eventID uuid.UUID, sourceID int64) (bool, error)
	CancelEvents(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Result reports what one reconcile pass cancelled.
type Result struct {
	Cancelled         int         `json:"cancelled"`
	CancelledEventIDs []uuid.UUID `json:"cancelled_event_ids,omitempty"`
}

// Reconciler diffs a scrape against the confirmed catalog.
type Reconciler struct {
	store     Store
	patterns  *resolver.PatternTable
	cacheSize int
}

// New creates a reconciler. The pattern table may be nil; cacheSize
// follows the same default as the resolver.
func New(store Store, patterns *resolver.PatternTable, cacheSize int) *Reconciler {
	return &Reconciler{store: store, patterns: patterns, cacheSize: cacheSize}
}

type presenceKey struct {
	kennelID int64
	date     string
}

// Reconcile cancels sole-source confirmed events within windowDays of
// today that the given scrape no longer lists. Tags are resolved the
// same way the merge engine resolves them, with a fresh run-scoped
// cache.
func (r *Reconciler) Reconcile(ctx context.Context, sourceID int64, scraped []models.RawEventInput, windowDays int) (*Result, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	kennelIDs, err := r.store.LinkedKennelIDs(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load linked kennels: %w", err)
	}
	if len(kennelIDs) == 0 {
		return &Result{}, nil
	}

	present, err := r.presentKeys(ctx, sourceID, scraped)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -windowDays)
	to := now.AddDate(0, 0, windowDays)

	events, err := r.store.ConfirmedEventsInWindow(ctx, kennelIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed events: %w", err)
	}

	var orphans []uuid.UUID
	for i := range events {
		ev := &events[i]
		key := presenceKey{kennelID: ev.KennelID, date: ev.Date.Format(models.DateLayout)}
		if _, ok := present[key]; ok {
			continue
		}
		corroborated, err := r.store.HasRawEventFromOtherSource(ctx, ev.ID, sourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to check raw evidence for event %s: %w", ev.ID, err)
		}
		if corroborated {
			continue
		}
		orphans = append(orphans, ev.ID)
	}

	if len(orphans) == 0 {
		return &Result{}, nil
	}

	cancelled, err := r.store.CancelEvents(ctx, orphans)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel stale events: %w", err)
	}
	metrics.RecordReconcilerCancellations(sourceID, int(cancelled))

	logging.Ctx(ctx).Info().
		Int64("source_id", sourceID).
		Int("window_days", windowDays).
		Int("confirmed", len(events)).
		Int64("cancelled", cancelled).
		Msg("reconciled stale events")

	return &Result{Cancelled: int(cancelled), CancelledEventIDs: orphans}, nil
}

// presentKeys resolves the scraped events into the set of (kennel,
// date) keys this scrape still claims. Unmatched tags and unparseable
// dates claim nothing; a resolver store failure aborts the pass rather
// than risk cancelling events the scrape actually contains.
func (r *Reconciler) presentKeys(ctx context.Context, sourceID int64, scraped []models.RawEventInput) (map[presenceKey]struct{}, error) {
	res, err := resolver.New(r.store, r.patterns, r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build resolver: %w", err)
	}

	present := make(map[presenceKey]struct{}, len(scraped))
	for i := range scraped {
		raw := &scraped[i]
		resolution, err := res.Resolve(ctx, raw.KennelTag, sourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tag %q: %w", raw.KennelTag, err)
		}
		if !resolution.Matched {
			continue
		}
		date, err := time.Parse(models.DateLayout, raw.Date)
		if err != nil {
			continue
		}
		present[presenceKey{kennelID: resolution.KennelID, date: date.Format(models.DateLayout)}] = struct{}{}
	}
	return present, nil
}
