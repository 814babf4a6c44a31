// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package alerting persists health candidates as alerts with lifecycle
// state and dispatches notifications for new ones.
//
// Candidates are deduplicated by (source, type): an active alert of the
// same type is refreshed in place instead of duplicated, preserving
// operator acknowledgment, and a snoozed alert stays silent until its
// snooze expires. The invariant is at most one active alert per
// (source, type).
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/health"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
)

// Store is the alert persistence surface the manager needs. *database.DB
// satisfies it.
type Store interface {
	ActiveAlert(ctx context.Context, sourceID int64, alertType models.AlertType) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
	UpdateAlertForRun(ctx context.Context, id int64, severity models.AlertSeverity, title, message string, details json.RawMessage, runID uuid.UUID) error
	ReopenAlert(ctx context.Context, id int64, severity models.AlertSeverity, title, message string, details json.RawMessage, runID uuid.UUID) error
	ResolveActiveAlert(ctx context.Context, sourceID int64, alertType models.AlertType, note string) (bool, error)
}

// Notifier delivers an alert to an external channel. Delivery failures
// never fail the pipeline.
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert) error
}

// Manager applies the alert lifecycle rules. A nil notifier disables
// dispatch.
type Manager struct {
	store    Store
	notifier Notifier
}

// NewManager creates an alert lifecycle manager.
func NewManager(store Store, notifier Notifier) *Manager {
	return &Manager{store: store, notifier: notifier}
}

// Persist applies each candidate from one run to the alert table. The
// whole batch is attempted even when individual candidates fail; the
// first failure is returned after the loop.
func (m *Manager) Persist(ctx context.Context, sourceID int64, runID uuid.UUID, candidates []health.Candidate) error {
	var firstErr error
	failures := 0

	for i := range candidates {
		if err := m.persistOne(ctx, sourceID, runID, &candidates[i]); err != nil {
			logging.Ctx(ctx).Error().Err(err).
				Int64("source_id", sourceID).
				Str("alert_type", string(candidates[i].Type)).
				Msg("failed to persist alert")
			failures++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return fmt.Errorf("failed to persist %d of %d alerts: %w", failures, len(candidates), firstErr)
	}
	return nil
}

func (m *Manager) persistOne(ctx context.Context, sourceID int64, runID uuid.UUID, c *health.Candidate) error {
	existing, err := m.store.ActiveAlert(ctx, sourceID, c.Type)
	if err != nil {
		return err
	}

	switch {
	case existing == nil:
		alert := &models.Alert{
			SourceID: sourceID,
			Type:     c.Type,
			Severity: c.Severity,
			Title:    c.Title,
			Message:  c.Message,
			Details:  c.Details,
			RunID:    &runID,
		}
		if err := m.store.CreateAlert(ctx, alert); err != nil {
			return err
		}
		metrics.RecordAlertAction("created")
		m.notify(ctx, alert)

	case existing.Status == models.AlertStatusSnoozed:
		if !existing.SnoozeExpired(time.Now()) {
			// Operator asked for quiet; the snoozed alert keeps its old
			// details until the window passes.
			metrics.RecordAlertAction("untouched")
			return nil
		}
		if err := m.store.ReopenAlert(ctx, existing.ID, c.Severity, c.Title, c.Message, c.Details, runID); err != nil {
			return err
		}
		metrics.RecordAlertAction("reopened")
		existing.Severity = c.Severity
		existing.Title = c.Title
		existing.Message = c.Message
		existing.Details = c.Details
		existing.Status = models.AlertStatusOpen
		m.notify(ctx, existing)

	default: // OPEN or ACKNOWLEDGED: refresh in place
		if err := m.store.UpdateAlertForRun(ctx, existing.ID, c.Severity, c.Title, c.Message, c.Details, runID); err != nil {
			return err
		}
		metrics.RecordAlertAction("updated")
	}

	return nil
}

// AutoResolve closes any active alert of the given type, recording the
// note. Used when a detection clears on its own, like a structure hash
// returning to baseline. Resolving a type with no active alert is a
// no-op.
func (m *Manager) AutoResolve(ctx context.Context, sourceID int64, alertType models.AlertType, note string) error {
	resolved, err := m.store.ResolveActiveAlert(ctx, sourceID, alertType, note)
	if err != nil {
		return fmt.Errorf("failed to auto-resolve %s alert: %w", alertType, err)
	}
	if resolved {
		metrics.RecordAlertAction("auto_resolved")
		logging.Ctx(ctx).Info().
			Int64("source_id", sourceID).
			Str("alert_type", string(alertType)).
			Msg("alert auto-resolved")
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, alert *models.Alert) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, alert); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("alert_type", string(alert.Type)).
			Msg("alert notification failed")
	}
}
