// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package merge turns raw scraped listings into canonical catalog events.
//
// The engine processes one source's batch sequentially: fingerprint
// dedup, kennel tag resolution, the source-kennel guard, then a
// trust-weighted upsert of the canonical event. Multi-day series are
// linked in a second pass after the main loop. One malformed item never
// aborts a batch; per-event failures are logged with date and tag
// context and collected up to a bounded cap.
package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/fingerprint"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/resolver"
)

// DefaultErrorCap bounds the per-run error list.
const DefaultErrorCap = 50

// Store is the persistence surface the merge engine needs. *database.DB
// satisfies it.
type Store interface {
	resolver.Store

	GetSource(ctx context.Context, id int64) (*models.Source, error)
	GetKennel(ctx context.Context, id int64) (*models.Kennel, error)
	LinkedKennelIDs(ctx context.Context, sourceID int64) ([]int64, error)

	RawEventByFingerprint(ctx context.Context, sourceID int64, fp string) (*models.RawEvent, error)
	CreateRawEvent(ctx context.Context, raw *models.RawEvent) error
	RefreshRawEventPayload(ctx context.Context, id uuid.UUID, payload json.RawMessage) (bool, error)
	MarkRawEventProcessed(ctx context.Context, id, eventID uuid.UUID) error

	EventByKennelAndDate(ctx context.Context, kennelID int64, date time.Time) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) (bool, error)
	UpdateEventContent(ctx context.Context, event *models.Event) (bool, error)
	UpsertEventLink(ctx context.Context, link *models.EventLink) (bool, error)
	ApplySeriesLinks(ctx context.Context, parentID uuid.UUID, childIDs []uuid.UUID) error
}

// Result summarizes one merged batch for the run's ScrapeLog.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Blocked int `json:"blocked"`

	UnmatchedTags []string `json:"unmatched_tags,omitempty"`
	BlockedTags   []string `json:"blocked_tags,omitempty"`

	Errors []models.ScrapeError `json:"errors,omitempty"`
}

// Engine merges raw event batches for one source at a time. An Engine is
// stateless between runs and safe for concurrent Process calls: every run
// gets its own resolver cache, guard set, and series accumulator.
type Engine struct {
	store     Store
	patterns  *resolver.PatternTable
	cacheSize int
	errorCap  int
}

// New creates a merge engine. errorCap <= 0 uses DefaultErrorCap;
// cacheSize <= 0 uses the resolver default.
func New(store Store, patterns *resolver.PatternTable, cacheSize, errorCap int) *Engine {
	if errorCap <= 0 {
		errorCap = DefaultErrorCap
	}
	return &Engine{
		store:     store,
		patterns:  patterns,
		cacheSize: cacheSize,
		errorCap:  errorCap,
	}
}

// Process merges a batch of raw events scraped from one source. The
// returned Result is always usable when err is nil, even when individual
// events failed; a non-nil error means the run itself could not proceed
// (unknown source, store unavailable) and should be logged as FAILED.
func (e *Engine) Process(ctx context.Context, sourceID int64, rawEvents []models.RawEventInput) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMergeDuration(time.Since(start))
	}()

	source, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %d: %w", sourceID, err)
	}
	if source == nil {
		return nil, fmt.Errorf("source %d does not exist", sourceID)
	}

	guardIDs, err := e.store.LinkedKennelIDs(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load linked kennels for source %d: %w", sourceID, err)
	}
	guard := make(map[int64]struct{}, len(guardIDs))
	for _, id := range guardIDs {
		guard[id] = struct{}{}
	}

	// Fresh resolver per run so concurrent runs never share cache state.
	res, err := resolver.New(e.store, e.patterns, e.cacheSize)
	if err != nil {
		return nil, err
	}

	st := newRunState(e.errorCap)
	for i := range rawEvents {
		raw := &rawEvents[i]
		if err := e.processOne(ctx, source, guard, res, raw, st); err != nil {
			st.recordError(ctx, raw, err)
		}
	}

	e.linkSeries(ctx, st)

	st.result.UnmatchedTags = sortedTags(st.unmatched)
	st.result.BlockedTags = sortedTags(st.blocked)

	logging.Ctx(ctx).Info().
		Int64("source_id", sourceID).
		Int("found", len(rawEvents)).
		Int("created", st.result.Created).
		Int("updated", st.result.Updated).
		Int("skipped", st.result.Skipped).
		Int("blocked", st.result.Blocked).
		Int("unmatched_tags", len(st.result.UnmatchedTags)).
		Int("errors", len(st.result.Errors)).
		Msg("merge completed")

	return st.result, nil
}

// processOne runs the full pipeline for a single raw event.
func (e *Engine) processOne(ctx context.Context, source *models.Source, guard map[int64]struct{}, res *resolver.Resolver, raw *models.RawEventInput, st *runState) error {
	fp := fingerprint.Compute(raw.Date, raw.KennelTag, raw.RunNumber, raw.Title)

	existing, err := e.store.RawEventByFingerprint(ctx, source.ID, fp)
	if err != nil {
		return err
	}
	if existing != nil {
		// Re-fetch of previously seen content is a no-op, but a duplicate
		// that never made it to a canonical event keeps the freshest
		// payload snapshot for diagnostics.
		st.result.Skipped++
		metrics.RecordMergeOutcome("skipped")
		if !existing.Processed {
			e.refreshPayload(ctx, existing.ID, raw)
		}
		return nil
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode raw payload: %w", err)
	}
	rawRow := &models.RawEvent{
		SourceID:    source.ID,
		Fingerprint: fp,
		Payload:     payload,
	}
	if err := e.store.CreateRawEvent(ctx, rawRow); err != nil {
		return err
	}

	resolution, err := res.Resolve(ctx, raw.KennelTag, source.ID)
	if err != nil {
		return err
	}
	if !resolution.Matched {
		// Deferred resolution, not an error: the raw event stays
		// unprocessed until an operator registers the kennel or alias.
		st.addUnmatched(raw.KennelTag)
		metrics.RecordMergeOutcome("unmatched")
		return nil
	}

	if _, ok := guard[resolution.KennelID]; !ok {
		st.result.Blocked++
		st.addBlocked(raw.KennelTag)
		metrics.RecordMergeOutcome("blocked")
		logging.Ctx(ctx).Warn().
			Int64("source_id", source.ID).
			Int64("kennel_id", resolution.KennelID).
			Str("tag", raw.KennelTag).
			Msg("kennel not linked to source, canonical write blocked")
		return nil
	}

	date, err := time.Parse(models.DateLayout, raw.Date)
	if err != nil {
		return fmt.Errorf("failed to parse event date %q: %w", raw.Date, err)
	}

	eventID, created, err := e.upsertEvent(ctx, source, resolution.KennelID, date, raw, st)
	if err != nil {
		return err
	}
	if created {
		st.result.Created++
		metrics.RecordMergeOutcome("created")
	} else {
		st.result.Updated++
		metrics.RecordMergeOutcome("updated")
	}

	if err := e.store.MarkRawEventProcessed(ctx, rawRow.ID, eventID); err != nil {
		return err
	}

	if raw.SeriesID != nil && *raw.SeriesID != "" {
		st.addSeriesMember(*raw.SeriesID, eventID, date)
	}
	return nil
}

// refreshPayload replaces the stored snapshot of a still-unprocessed
// duplicate. Failures are logged and dropped: the event is already
// counted as skipped.
func (e *Engine) refreshPayload(ctx context.Context, id uuid.UUID, raw *models.RawEventInput) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return
	}
	if _, err := e.store.RefreshRawEventPayload(ctx, id, payload); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("date", raw.Date).
			Str("tag", raw.KennelTag).
			Msg("failed to refresh raw event payload")
	}
}

// runState carries the mutable per-run accumulators: counters, tag sets,
// series memberships, and a kennel lookup cache.
type runState struct {
	result    *Result
	unmatched map[string]struct{}
	blocked   map[string]struct{}

	series      map[string][]seriesMember
	seriesOrder []string

	kennels  map[int64]*models.Kennel
	errorCap int
}

func newRunState(errorCap int) *runState {
	return &runState{
		result:    &Result{},
		unmatched: make(map[string]struct{}),
		blocked:   make(map[string]struct{}),
		series:    make(map[string][]seriesMember),
		kennels:   make(map[int64]*models.Kennel),
		errorCap:  errorCap,
	}
}

func (st *runState) addUnmatched(tag string) {
	if norm := normalizeTag(tag); norm != "" {
		st.unmatched[norm] = struct{}{}
	}
}

func (st *runState) addBlocked(tag string) {
	if norm := normalizeTag(tag); norm != "" {
		st.blocked[norm] = struct{}{}
	}
}

// recordError logs a per-event failure and appends it to the bounded
// error list. Processing always continues with the next event.
func (st *runState) recordError(ctx context.Context, raw *models.RawEventInput, err error) {
	logging.Ctx(ctx).Error().Err(err).
		Str("date", raw.Date).
		Str("tag", raw.KennelTag).
		Msg("failed to merge raw event")
	metrics.RecordMergeOutcome("error")

	if len(st.result.Errors) < st.errorCap {
		st.result.Errors = append(st.result.Errors, models.ScrapeError{
			Date:    raw.Date,
			Tag:     raw.KennelTag,
			Message: err.Error(),
		})
	}
}

// kennel returns a kennel by ID through the per-run cache. Lookup
// failures are logged and cached as misses; start-time derivation is
// best-effort.
func (st *runState) kennel(ctx context.Context, store Store, id int64) *models.Kennel {
	if k, ok := st.kennels[id]; ok {
		return k
	}
	k, err := store.GetKennel(ctx, id)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("kennel_id", id).Msg("failed to load kennel")
		k = nil
	}
	st.kennels[id] = k
	return k
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func sortedTags(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
