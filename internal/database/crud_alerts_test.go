// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/harrierpack/trailhound/internal/models"
)

func insertTestAlert(t *testing.T, db *DB, sourceID int64, alertType models.AlertType, severity models.AlertSeverity) *models.Alert {
	t.Helper()

	runID := uuid.New()
	alert := &models.Alert{
		SourceID: sourceID,
		Type:     alertType,
		Severity: severity,
		Title:    "Event count anomaly",
		Message:  "Source produced 0 events against a baseline of 20",
		Details:  json.RawMessage(`{"current":0,"baseline":20}`),
		RunID:    &runID,
	}
	if err := db.CreateAlert(context.Background(), alert); err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	return alert
}

func TestCreateAlert_Roundtrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	alert := insertTestAlert(t, db, source.ID, models.AlertTypeEventCountAnomaly, models.AlertSeverityCritical)

	if alert.ID == 0 {
		t.Error("expected generated alert ID")
	}
	if alert.Status != models.AlertStatusOpen {
		t.Errorf("expected status OPEN, got %s", alert.Status)
	}

	got, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected alert, got nil")
	}
	if got.Type != models.AlertTypeEventCountAnomaly {
		t.Errorf("expected type EVENT_COUNT_ANOMALY, got %s", got.Type)
	}
	if got.Severity != models.AlertSeverityCritical {
		t.Errorf("expected severity CRITICAL, got %s", got.Severity)
	}
	if got.RunID == nil || *got.RunID != *alert.RunID {
		t.Errorf("expected run ID %v, got %v", alert.RunID, got.RunID)
	}

	var details map[string]int
	if err := json.Unmarshal(got.Details, &details); err != nil {
		t.Fatalf("failed to unmarshal details: %v", err)
	}
	if details["baseline"] != 20 {
		t.Errorf("expected baseline 20 in details, got %v", details)
	}
}

func TestGetAlert_MissReturnsNil(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetAlert(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing alert, got %+v", got)
	}
}

func TestActiveAlert_FindsOpenAndAcknowledged(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	alert := insertTestAlert(t, db, source.ID, models.AlertTypeScrapeFailure, models.AlertSeverityWarning)

	got, err := db.ActiveAlert(ctx, source.ID, models.AlertTypeScrapeFailure)
	if err != nil {
		t.Fatalf("ActiveAlert failed: %v", err)
	}
	if got == nil || got.ID != alert.ID {
		t.Fatalf("expected active alert %d, got %+v", alert.ID, got)
	}

	// Acknowledged alerts still count as active
	if _, err := db.AcknowledgeAlert(ctx, alert.ID, "gps"); err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}
	got, err = db.ActiveAlert(ctx, source.ID, models.AlertTypeScrapeFailure)
	if err != nil {
		t.Fatalf("ActiveAlert failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected acknowledged alert to remain active")
	}

	// Resolved alerts do not
	if _, err := db.ResolveAlert(ctx, alert.ID, "fixed upstream"); err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}
	got, err = db.ActiveAlert(ctx, source.ID, models.AlertTypeScrapeFailure)
	if err != nil {
		t.Fatalf("ActiveAlert failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no active alert after resolve, got %+v", got)
	}
}

func TestActiveAlert_ScopedToType(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	insertTestAlert(t, db, source.ID, models.AlertTypeScrapeFailure, models.AlertSeverityWarning)

	got, err := db.ActiveAlert(ctx, source.ID, models.AlertTypeStructureChange)
	if err != nil {
		t.Fatalf("ActiveAlert failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no active alert for different type, got %+v", got)
	}
}

func TestUpdateAlertForRun_PreservesOperatorState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	alert := insertTestAlert(t, db, source.ID, models.AlertTypeFillRateDrop, models.AlertSeverityWarning)

	if ok, err := db.AcknowledgeAlert(ctx, alert.ID, "gps"); err != nil || !ok {
		t.Fatalf("AcknowledgeAlert failed: ok=%v err=%v", ok, err)
	}

	newRun := uuid.New()
	err := db.UpdateAlertForRun(ctx, alert.ID, models.AlertSeverityWarning,
		"Fill rate drop", "description fill fell from 80% to 40%",
		json.RawMessage(`{"field":"description","drop":40}`), newRun)
	if err != nil {
		t.Fatalf("UpdateAlertForRun failed: %v", err)
	}

	got, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.Status != models.AlertStatusAcknowledged {
		t.Errorf("expected status ACKNOWLEDGED preserved, got %s", got.Status)
	}
	if got.AcknowledgedBy != "gps" {
		t.Errorf("expected acknowledged_by preserved, got %q", got.AcknowledgedBy)
	}
	if got.RunID == nil || *got.RunID != newRun {
		t.Errorf("expected run ID updated to %v, got %v", newRun, got.RunID)
	}
	if got.Message != "description fill fell from 80% to 40%" {
		t.Errorf("expected message updated, got %q", got.Message)
	}
}

func TestReopenAlert_ClearsSnoozeAndAcknowledgment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	alert := insertTestAlert(t, db, source.ID, models.AlertTypeNewUnmatchedTags, models.AlertSeverityInfo)

	if ok, err := db.AcknowledgeAlert(ctx, alert.ID, "gps"); err != nil || !ok {
		t.Fatalf("AcknowledgeAlert failed: ok=%v err=%v", ok, err)
	}
	past := time.Now().Add(-time.Hour)
	if ok, err := db.SnoozeAlert(ctx, alert.ID, past); err != nil || !ok {
		t.Fatalf("SnoozeAlert failed: ok=%v err=%v", ok, err)
	}

	newRun := uuid.New()
	err := db.ReopenAlert(ctx, alert.ID, models.AlertSeverityInfo,
		"New unmatched tags", "2 new unmatched kennel tags",
		json.RawMessage(`{"tags":["mystery hash","pub crawl h3"]}`), newRun)
	if err != nil {
		t.Fatalf("ReopenAlert failed: %v", err)
	}

	got, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.Status != models.AlertStatusOpen {
		t.Errorf("expected status OPEN after reopen, got %s", got.Status)
	}
	if got.SnoozedUntil != nil {
		t.Errorf("expected snoozed_until cleared, got %v", got.SnoozedUntil)
	}
	if got.AcknowledgedBy != "" || got.AcknowledgedAt != nil {
		t.Errorf("expected acknowledgment cleared, got by=%q at=%v", got.AcknowledgedBy, got.AcknowledgedAt)
	}
}

func TestAcknowledgeAlert_OnlyWhenOpen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	alert := insertTestAlert(t, db, source.ID, models.AlertTypeScrapeFailure, models.AlertSeverityWarning)

	ok, err := db.AcknowledgeAlert(ctx, alert.ID, "gps")
	if err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}
	if !ok {
		t.Error("expected acknowledge of OPEN alert to succeed")
	}

	// Second acknowledge is a no-op: alert is no longer OPEN
	ok, err = db.AcknowledgeAlert(ctx, alert.ID, "someone else")
	if err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}
	if ok {
		t.Error("expected acknowledge of non-OPEN alert to return false")
	}

	got, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.AcknowledgedBy != "gps" {
		t.Errorf("expected first acknowledger preserved, got %q", got.AcknowledgedBy)
	}
}

func TestSnoozeAlert_RecordsUntil(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	alert := insertTestAlert(t, db, source.ID, models.AlertTypeScrapeFailure, models.AlertSeverityWarning)

	until := time.Now().Add(4 * time.Hour)
	ok, err := db.SnoozeAlert(ctx, alert.ID, until)
	if err != nil {
		t.Fatalf("SnoozeAlert failed: %v", err)
	}
	if !ok {
		t.Error("expected snooze of active alert to succeed")
	}

	got, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.Status != models.AlertStatusSnoozed {
		t.Errorf("expected status SNOOZED, got %s", got.Status)
	}
	if got.SnoozedUntil == nil {
		t.Fatal("expected snoozed_until to be set")
	}
	if got.SnoozedUntil.Sub(until).Abs() > time.Second {
		t.Errorf("expected snoozed_until near %v, got %v", until, got.SnoozedUntil)
	}
}

func TestResolveAlert_OnlyWhenActive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	alert := insertTestAlert(t, db, source.ID, models.AlertTypeScrapeFailure, models.AlertSeverityWarning)

	ok, err := db.ResolveAlert(ctx, alert.ID, "source back online")
	if err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}
	if !ok {
		t.Error("expected resolve of active alert to succeed")
	}

	ok, err = db.ResolveAlert(ctx, alert.ID, "again")
	if err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}
	if ok {
		t.Error("expected resolve of resolved alert to return false")
	}

	got, err := db.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.Status != models.AlertStatusResolved {
		t.Errorf("expected status RESOLVED, got %s", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}
	if got.ResolutionNote != "source back online" {
		t.Errorf("expected first resolution note preserved, got %q", got.ResolutionNote)
	}
}

func TestResolveActiveAlert_BySourceAndType(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := insertTestSource(t, db, "bh3-site", 5)
	insertTestAlert(t, db, source.ID, models.AlertTypeStructureChange, models.AlertSeverityWarning)

	ok, err := db.ResolveActiveAlert(ctx, source.ID, models.AlertTypeStructureChange, "structure returned to baseline")
	if err != nil {
		t.Fatalf("ResolveActiveAlert failed: %v", err)
	}
	if !ok {
		t.Error("expected auto-resolve to close the structural alert")
	}

	// Nothing left to resolve
	ok, err = db.ResolveActiveAlert(ctx, source.ID, models.AlertTypeStructureChange, "again")
	if err != nil {
		t.Fatalf("ResolveActiveAlert failed: %v", err)
	}
	if ok {
		t.Error("expected no-op when no active alert exists")
	}
}

func TestListAlerts_Filters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sourceA := insertTestSource(t, db, "source-a", 5)
	sourceB := insertTestSource(t, db, "source-b", 5)

	insertTestAlert(t, db, sourceA.ID, models.AlertTypeScrapeFailure, models.AlertSeverityWarning)
	insertTestAlert(t, db, sourceA.ID, models.AlertTypeEventCountAnomaly, models.AlertSeverityCritical)
	resolved := insertTestAlert(t, db, sourceB.ID, models.AlertTypeStructureChange, models.AlertSeverityInfo)
	if _, err := db.ResolveAlert(ctx, resolved.ID, "done"); err != nil {
		t.Fatalf("ResolveAlert failed: %v", err)
	}

	bySource, err := db.ListAlerts(ctx, AlertFilter{SourceID: &sourceA.ID})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(bySource) != 2 {
		t.Errorf("expected 2 alerts for source A, got %d", len(bySource))
	}

	bySeverity, err := db.ListAlerts(ctx, AlertFilter{
		Severities: []models.AlertSeverity{models.AlertSeverityCritical},
	})
	if err != nil {
		t.Fatalf("ListAlerts by severity failed: %v", err)
	}
	if len(bySeverity) != 1 || bySeverity[0].Type != models.AlertTypeEventCountAnomaly {
		t.Errorf("expected 1 critical alert, got %+v", bySeverity)
	}

	byStatus, err := db.ListAlerts(ctx, AlertFilter{
		Statuses: []models.AlertStatus{models.AlertStatusResolved},
	})
	if err != nil {
		t.Fatalf("ListAlerts by status failed: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != resolved.ID {
		t.Errorf("expected 1 resolved alert, got %+v", byStatus)
	}
}
