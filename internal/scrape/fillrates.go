// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package scrape

import (
	"strings"

	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/models"
)

// fillAccessors maps a configurable field name to a presence check on
// the raw event. Whitespace-only strings count as empty.
var fillAccessors = map[string]func(*models.RawEventInput) bool{
	"title":        func(r *models.RawEventInput) bool { return stringFilled(r.Title) },
	"description":  func(r *models.RawEventInput) bool { return stringFilled(r.Description) },
	"hares":        func(r *models.RawEventInput) bool { return stringFilled(r.Hares) },
	"location":     func(r *models.RawEventInput) bool { return stringFilled(r.Location) },
	"location_url": func(r *models.RawEventInput) bool { return stringFilled(r.LocationURL) },
	"start_time":   func(r *models.RawEventInput) bool { return stringFilled(r.StartTime) },
	"source_url":   func(r *models.RawEventInput) bool { return stringFilled(r.SourceURL) },
	"run_number":   func(r *models.RawEventInput) bool { return r.RunNumber != nil },
}

// ComputeFillRates returns the fraction of events carrying each of the
// given fields, as values in [0, 1]. The health analyzer compares these
// across runs to catch a source that silently stopped publishing a
// field. An empty batch yields an empty map.
func ComputeFillRates(events []models.RawEventInput, fields []string) map[string]float64 {
	rates := make(map[string]float64, len(fields))
	if len(events) == 0 {
		return rates
	}

	for _, field := range fields {
		accessor, ok := fillAccessors[field]
		if !ok {
			logging.Warn().Str("field", field).Msg("unknown fill-rate field ignored")
			continue
		}
		filled := 0
		for i := range events {
			if accessor(&events[i]) {
				filled++
			}
		}
		rates[field] = float64(filled) / float64(len(events))
	}
	return rates
}

func stringFilled(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
