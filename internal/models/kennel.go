// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package models

import "time"

// Kennel is an organizing group whose recurring events are tracked.
// The registry is read-only from the pipeline's perspective.
type Kennel struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// ShortName is the canonical tag (e.g. "NYCH3") sources are expected
	// to use; resolver stage 2 matches against it case-insensitively.
	ShortName string `json:"short_name" db:"short_name"`

	Region    string    `json:"region,omitempty" db:"region"`
	Timezone  string    `json:"timezone" db:"timezone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// KennelAlias is a free-text synonym for a kennel, matched by resolver
// stage 3. Aliases are maintained by administrative workflows, often by
// promoting tags that previously went unmatched.
type KennelAlias struct {
	ID        int64     `json:"id" db:"id"`
	KennelID  int64     `json:"kennel_id" db:"kennel_id"`
	Alias     string    `json:"alias" db:"alias"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
