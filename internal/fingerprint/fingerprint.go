// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package fingerprint derives stable content hashes for raw events.
//
// The fingerprint is the sole deduplication key for fetched items, scoped
// to (source, fingerprint): re-fetching content the pipeline has already
// seen produces the same digest and is skipped by the merge engine. The
// hashed fields (date, kennel tag, run number, title) are the ones proven
// stable indicators of "same item" across scrape formats; volatile fields
// like descriptions and locations are deliberately excluded.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Compute returns the 64-character lowercase hex SHA-256 digest of the
// canonical composite `date|kennelTag|runNumber|title`. Absent optional
// fields contribute an empty segment, so a nil title and an explicitly
// empty one hash the same. Pure: no I/O, no clock, no randomness.
func Compute(date, kennelTag string, runNumber *int, title *string) string {
	var b strings.Builder
	b.WriteString(date)
	b.WriteByte('|')
	b.WriteString(kennelTag)
	b.WriteByte('|')
	if runNumber != nil {
		b.WriteString(strconv.Itoa(*runNumber))
	}
	b.WriteByte('|')
	if title != nil {
		b.WriteString(*title)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
