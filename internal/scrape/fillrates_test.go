// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package scrape

import (
	"testing"

	"github.com/harrierpack/trailhound/internal/models"
)

func TestComputeFillRates(t *testing.T) {
	full := "filled"
	blank := "   "
	n := 42

	events := []models.RawEventInput{
		{Description: &full, Hares: &full, RunNumber: &n},
		{Description: &full, Hares: &blank},
		{Description: nil, Hares: nil},
		{Description: &full},
	}

	rates := ComputeFillRates(events, []string{"description", "hares", "run_number"})

	if got := rates["description"]; got != 0.75 {
		t.Errorf("description = %v, want 0.75", got)
	}
	// Whitespace-only values do not count as filled.
	if got := rates["hares"]; got != 0.25 {
		t.Errorf("hares = %v, want 0.25", got)
	}
	if got := rates["run_number"]; got != 0.25 {
		t.Errorf("run_number = %v, want 0.25", got)
	}
}

func TestComputeFillRates_EmptyBatch(t *testing.T) {
	rates := ComputeFillRates(nil, []string{"description"})
	if len(rates) != 0 {
		t.Errorf("expected empty map for empty batch, got %v", rates)
	}
}

func TestComputeFillRates_UnknownFieldIgnored(t *testing.T) {
	full := "filled"
	events := []models.RawEventInput{{Description: &full}}

	rates := ComputeFillRates(events, []string{"description", "no_such_field"})

	if _, ok := rates["no_such_field"]; ok {
		t.Error("expected unknown field omitted from rates")
	}
	if got := rates["description"]; got != 1.0 {
		t.Errorf("description = %v, want 1.0", got)
	}
}
