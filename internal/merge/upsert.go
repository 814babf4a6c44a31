// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/models"
)

// upsertEvent creates or trust-updates the canonical event for one raw
// event, returning the canonical ID and whether a new event was created.
func (e *Engine) upsertEvent(ctx context.Context, source *models.Source, kennelID int64, date time.Time, raw *models.RawEventInput, st *runState) (uuid.UUID, bool, error) {
	existing, err := e.store.EventByKennelAndDate(ctx, kennelID, date)
	if err != nil {
		return uuid.Nil, false, err
	}

	if existing == nil {
		event := e.buildEvent(ctx, source, kennelID, date, raw, st)
		created, err := e.store.CreateEvent(ctx, event)
		if err != nil {
			return uuid.Nil, false, err
		}
		if created {
			e.recordLinks(ctx, event, source, raw)
			return event.ID, true, nil
		}
		// A concurrent run inserted the event between lookup and insert;
		// take the update path against the winner.
		existing, err = e.store.EventByKennelAndDate(ctx, kennelID, date)
		if err != nil {
			return uuid.Nil, false, err
		}
		if existing == nil {
			return uuid.Nil, false, fmt.Errorf("event for kennel %d on %s vanished after insert conflict", kennelID, raw.Date)
		}
	}

	if err := e.updateEvent(ctx, source, existing, raw, st); err != nil {
		return uuid.Nil, false, err
	}
	return existing.ID, false, nil
}

// buildEvent seeds a new canonical event from a raw input. Fields the
// adapter never populated become zero values; the event carries the
// source's trust level and listing URL.
func (e *Engine) buildEvent(ctx context.Context, source *models.Source, kennelID int64, date time.Time, raw *models.RawEventInput, st *runState) *models.Event {
	event := &models.Event{
		KennelID:    kennelID,
		Date:        date,
		Title:       stringValue(raw.Title),
		Description: stringValue(raw.Description),
		Hares:       stringValue(raw.Hares),
		Location:    stringValue(raw.Location),
		LocationURL: stringValue(raw.LocationURL),
		StartTime:   stringValue(raw.StartTime),
		SourceURL:   stringValue(raw.SourceURL),
		TrustLevel:  source.TrustLevel,
		Status:      models.EventStatusConfirmed,
	}
	if raw.RunNumber != nil {
		n := *raw.RunNumber
		event.RunNumber = &n
	}
	e.applyStartsAt(ctx, event, kennelID, st)
	return event
}

// updateEvent applies the trust-weighted overwrite to an existing event.
// The conditional update only lands when the incoming trust is >= the
// event's current trust; a rejected write is not an error. The recorded
// source URL is never overwritten here: a differing incoming URL becomes
// an EventLink instead.
func (e *Engine) updateEvent(ctx context.Context, source *models.Source, existing *models.Event, raw *models.RawEventInput, st *runState) error {
	merged := *existing
	applyDefinedFields(&merged, raw)
	merged.TrustLevel = source.TrustLevel
	if raw.StartTime != nil {
		e.applyStartsAt(ctx, &merged, merged.KennelID, st)
	}

	updated, err := e.store.UpdateEventContent(ctx, &merged)
	if err != nil {
		return err
	}
	if !updated {
		logging.Ctx(ctx).Debug().
			Str("event_id", existing.ID.String()).
			Int("incoming_trust", source.TrustLevel).
			Int("existing_trust", existing.TrustLevel).
			Msg("content update rejected by trust rule")
	}

	e.recordLinks(ctx, existing, source, raw)
	return nil
}

// applyDefinedFields overwrites content with every field the adapter
// actually populated. A pointer to an empty string is a deliberate clear;
// a nil pointer leaves the existing value alone.
func applyDefinedFields(event *models.Event, raw *models.RawEventInput) {
	if raw.Title != nil {
		event.Title = *raw.Title
	}
	if raw.Description != nil {
		event.Description = *raw.Description
	}
	if raw.Hares != nil {
		event.Hares = *raw.Hares
	}
	if raw.Location != nil {
		event.Location = *raw.Location
	}
	if raw.LocationURL != nil {
		event.LocationURL = *raw.LocationURL
	}
	if raw.StartTime != nil {
		event.StartTime = *raw.StartTime
	}
	if raw.RunNumber != nil {
		n := *raw.RunNumber
		event.RunNumber = &n
	}
}

// recordLinks appends alternate URLs for an event: the source's own
// listing URL when it differs from the recorded one, plus any extra links
// the adapter reported. Link failures are logged and dropped; they never
// fail the event.
func (e *Engine) recordLinks(ctx context.Context, event *models.Event, source *models.Source, raw *models.RawEventInput) {
	if raw.SourceURL != nil && *raw.SourceURL != "" && *raw.SourceURL != event.SourceURL {
		e.upsertLink(ctx, &models.EventLink{
			EventID:  event.ID,
			SourceID: source.ID,
			URL:      *raw.SourceURL,
			Label:    source.Name,
		})
	}
	for _, l := range raw.ExternalLinks {
		if l.URL == "" || l.URL == event.SourceURL {
			continue
		}
		e.upsertLink(ctx, &models.EventLink{
			EventID:  event.ID,
			SourceID: source.ID,
			URL:      l.URL,
			Label:    l.Label,
		})
	}
}

func (e *Engine) upsertLink(ctx context.Context, link *models.EventLink) {
	if _, err := e.store.UpsertEventLink(ctx, link); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("url", link.URL).
			Msg("failed to record event link")
	}
}

// applyStartsAt derives the UTC start instant from the reported
// wall-clock time and the kennel's timezone. Unparseable times leave
// StartsAt unset; the reported string is kept either way.
func (e *Engine) applyStartsAt(ctx context.Context, event *models.Event, kennelID int64, st *runState) {
	if event.StartTime == "" {
		event.StartsAt = nil
		return
	}

	kennel := st.kennel(ctx, e.store, kennelID)
	if kennel == nil || kennel.Timezone == "" {
		return
	}
	event.Timezone = kennel.Timezone

	loc, err := time.LoadLocation(kennel.Timezone)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("timezone", kennel.Timezone).
			Int64("kennel_id", kennelID).
			Msg("invalid kennel timezone")
		return
	}

	hour, minute, ok := parseClockTime(event.StartTime)
	if !ok {
		return
	}
	t := time.Date(event.Date.Year(), event.Date.Month(), event.Date.Day(), hour, minute, 0, 0, loc).UTC()
	event.StartsAt = &t
}

// clockLayouts covers the start-time formats sources actually publish.
var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"}

// parseClockTime parses a wall-clock start time like "19:00" or "7:00 PM".
func parseClockTime(s string) (hour, minute int, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
