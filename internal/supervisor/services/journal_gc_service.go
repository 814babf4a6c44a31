// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package services

import (
	"context"
	"time"

	"github.com/harrierpack/trailhound/internal/logging"
)

// GarbageCollector matches the journal's value-log GC entry point.
type GarbageCollector interface {
	RunGC() error
}

// JournalGCService periodically reclaims journal storage. Badger only
// frees value-log space when GC is driven externally, so without this
// loop the crash journal grows without bound.
type JournalGCService struct {
	journal  GarbageCollector
	interval time.Duration
	name     string
}

// NewJournalGCService wraps a journal GC loop for supervision.
func NewJournalGCService(journal GarbageCollector, interval time.Duration) *JournalGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &JournalGCService{
		journal:  journal,
		interval: interval,
		name:     "journal-gc",
	}
}

// Serve implements suture.Service. GC failures are logged and retried
// on the next tick; they never escalate to a service restart because
// restarting cannot make Badger reclaim more space.
func (s *JournalGCService) Serve(ctx context.Context) error {
	logger := logging.WithComponent("journal-gc")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.journal.RunGC(); err != nil {
				logger.Warn().Err(err).Msg("journal garbage collection failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *JournalGCService) String() string {
	return s.name
}
