// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package fingerprint

import (
	"regexp"
	"testing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestComputeDeterministic(t *testing.T) {
	a := Compute("2026-03-07", "NYCH3", intPtr(2150), strPtr("Anniversary Run"))
	b := Compute("2026-03-07", "NYCH3", intPtr(2150), strPtr("Anniversary Run"))

	if a != b {
		t.Errorf("expected identical digests, got %s and %s", a, b)
	}
	if !hexPattern.MatchString(a) {
		t.Errorf("expected 64 lowercase hex chars, got %q", a)
	}
}

func TestComputeSensitivity(t *testing.T) {
	base := Compute("2026-03-07", "NYCH3", intPtr(2150), strPtr("Anniversary Run"))

	variants := map[string]string{
		"different date":       Compute("2026-03-08", "NYCH3", intPtr(2150), strPtr("Anniversary Run")),
		"different tag":        Compute("2026-03-07", "BH3", intPtr(2150), strPtr("Anniversary Run")),
		"different run number": Compute("2026-03-07", "NYCH3", intPtr(2151), strPtr("Anniversary Run")),
		"absent run number":    Compute("2026-03-07", "NYCH3", nil, strPtr("Anniversary Run")),
		"different title":      Compute("2026-03-07", "NYCH3", intPtr(2150), strPtr("Regular Run")),
		"absent title":         Compute("2026-03-07", "NYCH3", intPtr(2150), nil),
	}

	for name, digest := range variants {
		if digest == base {
			t.Errorf("%s: expected a different digest", name)
		}
	}
}

func TestComputeEmptyVersusAbsent(t *testing.T) {
	// An explicitly empty title and an absent title hash the same: both
	// contribute an empty segment to the composite. Only value changes
	// matter for dedup, and "" carries no value.
	empty := Compute("2026-03-07", "NYCH3", nil, strPtr(""))
	absent := Compute("2026-03-07", "NYCH3", nil, nil)

	if empty != absent {
		t.Errorf("expected empty and absent title to collide, got %s and %s", empty, absent)
	}
}

func TestComputeKnownVector(t *testing.T) {
	// SHA-256("2026-01-10|NYCH3||") pinned so accidental changes to the
	// composite layout fail loudly.
	got := Compute("2026-01-10", "NYCH3", nil, nil)
	const want = "8d8d917ff4690a9736ea6ad9019589ddc5f0968cdef6f9b53c60812d1448c4ad"

	if got != want {
		t.Errorf("expected pinned digest %s, got %s", want, got)
	}
}
