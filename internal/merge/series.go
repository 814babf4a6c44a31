// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/models"
)

type seriesMember struct {
	eventID uuid.UUID
	date    time.Time
}

// addSeriesMember registers a canonical event as one day of a multi-day
// series. Membership is deduplicated by event ID; the first sighting
// keeps its date.
func (st *runState) addSeriesMember(seriesID string, eventID uuid.UUID, date time.Time) {
	members := st.series[seriesID]
	for _, m := range members {
		if m.eventID == eventID {
			return
		}
	}
	if members == nil {
		st.seriesOrder = append(st.seriesOrder, seriesID)
	}
	st.series[seriesID] = append(members, seriesMember{eventID: eventID, date: date})
}

// linkSeries commits the series groups accumulated during the main loop.
// In each group with two or more members the earliest-dated event becomes
// the parent and the rest reference it; ties keep batch order. Each group
// is one batched update, and a failed group is recorded as an error
// without stopping the others.
func (e *Engine) linkSeries(ctx context.Context, st *runState) {
	for _, seriesID := range st.seriesOrder {
		members := st.series[seriesID]
		if len(members) < 2 {
			continue
		}

		parent := members[0]
		for _, m := range members[1:] {
			if m.date.Before(parent.date) {
				parent = m
			}
		}

		childIDs := make([]uuid.UUID, 0, len(members)-1)
		for _, m := range members {
			if m.eventID != parent.eventID {
				childIDs = append(childIDs, m.eventID)
			}
		}

		if err := e.store.ApplySeriesLinks(ctx, parent.eventID, childIDs); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Str("series_id", seriesID).
				Int("members", len(members)).
				Msg("failed to link series")
			if len(st.result.Errors) < st.errorCap {
				st.result.Errors = append(st.result.Errors, models.ScrapeError{
					Tag:     seriesID,
					Message: fmt.Sprintf("failed to link series: %v", err),
				})
			}
		}
	}
}
