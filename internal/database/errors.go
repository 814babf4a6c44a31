// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"io"

	"github.com/harrierpack/trailhound/internal/logging"
)

// closeWithLog closes a resource and logs any failure. Used where the close
// error cannot change the outcome but should not vanish silently, such as
// prepared statements inside an already-committed transaction.
func closeWithLog(c io.Closer, resource string) {
	if err := c.Close(); err != nil {
		logging.Warn().Err(err).Str("resource", resource).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and discards the error. Only for cleanup
// paths where the original error is already being returned.
func closeQuietly(c io.Closer) {
	_ = c.Close()
}
