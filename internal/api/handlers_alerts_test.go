// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harrierpack/trailhound/internal/models"
)

func openAlertStore(id int64) *fakeStore {
	return &fakeStore{
		alertsByID: map[int64]*models.Alert{
			id: {
				ID:       id,
				SourceID: 2,
				Type:     models.AlertTypeScrapeFailure,
				Severity: models.AlertSeverityCritical,
				Status:   models.AlertStatusOpen,
				Title:    "Scrape failed",
			},
		},
		ackResult:     true,
		snoozeResult:  true,
		resolveResult: true,
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAlerts_Filters(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/alerts?source=2&type=SCRAPE_FAILURE,FILL_RATE_DROP&severity=critical&status=open,snoozed", nil)
	rec := serve(store, testAPIConfig(), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}

	filter := store.lastAlertFilter
	if filter.SourceID == nil || *filter.SourceID != 2 {
		t.Errorf("expected source filter 2, got %v", filter.SourceID)
	}
	if len(filter.Types) != 2 || filter.Types[0] != models.AlertTypeScrapeFailure || filter.Types[1] != models.AlertTypeFillRateDrop {
		t.Errorf("unexpected type filter: %v", filter.Types)
	}
	if len(filter.Severities) != 1 || filter.Severities[0] != models.AlertSeverityCritical {
		t.Errorf("unexpected severity filter: %v", filter.Severities)
	}
	if len(filter.Statuses) != 2 || filter.Statuses[0] != models.AlertStatusOpen || filter.Statuses[1] != models.AlertStatusSnoozed {
		t.Errorf("unexpected status filter: %v", filter.Statuses)
	}
}

func TestAlerts_InvalidParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"bad source", "/api/v1/alerts?source=two"},
		{"bad type", "/api/v1/alerts?type=EXPLOSION"},
		{"bad severity", "/api/v1/alerts?severity=mild"},
		{"bad status", "/api/v1/alerts?status=done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(&fakeStore{}, testAPIConfig(), httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	t.Parallel()

	store := openAlertStore(5)
	rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/5/acknowledge", `{"acknowledged_by":"sam"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(store.ackCalls) != 1 {
		t.Fatalf("expected 1 acknowledge call, got %d", len(store.ackCalls))
	}
	if store.ackCalls[0].id != 5 || store.ackCalls[0].by != "sam" {
		t.Errorf("unexpected acknowledge call: %+v", store.ackCalls[0])
	}

	var alert models.Alert
	decodeData(t, decodeEnvelope(t, rec), &alert)
	if alert.ID != 5 {
		t.Errorf("expected alert 5 in response, got %d", alert.ID)
	}
}

func TestAcknowledgeAlert_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"invalid json", `{not json`, ErrCodeBadRequest},
		{"missing acknowledged_by", `{}`, ErrCodeValidationFailed},
		{"blank acknowledged_by", `{"acknowledged_by":""}`, ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openAlertStore(5)
			rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/5/acknowledge", tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			env := decodeEnvelope(t, rec)
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("expected error code %q, got %+v", tt.wantCode, env.Error)
			}
			if len(store.ackCalls) != 0 {
				t.Errorf("expected no acknowledge calls, got %d", len(store.ackCalls))
			}
		})
	}
}

func TestAcknowledgeAlert_NotFound(t *testing.T) {
	t.Parallel()

	rec := serve(&fakeStore{}, testAPIConfig(), postJSON("/api/v1/alerts/404/acknowledge", `{"acknowledged_by":"sam"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestAcknowledgeAlert_WrongState(t *testing.T) {
	t.Parallel()

	store := openAlertStore(5)
	store.ackResult = false
	store.alertsByID[5].Status = models.AlertStatusResolved

	rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/5/acknowledge", `{"acknowledged_by":"sam"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error == nil || env.Error.Code != ErrCodeConflict {
		t.Errorf("expected error code %q, got %+v", ErrCodeConflict, env.Error)
	}
}

func TestSnoozeAlert(t *testing.T) {
	t.Parallel()

	store := openAlertStore(7)
	before := time.Now().UTC()
	rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/7/snooze", `{"hours":12}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(store.snoozeCalls) != 1 {
		t.Fatalf("expected 1 snooze call, got %d", len(store.snoozeCalls))
	}

	until := store.snoozeCalls[0].until
	want := before.Add(12 * time.Hour)
	if until.Before(want.Add(-time.Minute)) || until.After(want.Add(time.Minute)) {
		t.Errorf("expected snooze until ~%v, got %v", want, until)
	}
}

func TestSnoozeAlert_HoursBounds(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"hours":0}`, `{"hours":-4}`, `{"hours":900}`} {
		store := openAlertStore(7)
		rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/7/snooze", body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected status 400, got %d", body, rec.Code)
		}
		if len(store.snoozeCalls) != 0 {
			t.Errorf("body %s: expected no snooze calls", body)
		}
	}
}

func TestResolveAlert(t *testing.T) {
	t.Parallel()

	store := openAlertStore(9)
	rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/9/resolve", `{"note":"source fixed upstream"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(store.resolveCalls) != 1 {
		t.Fatalf("expected 1 resolve call, got %d", len(store.resolveCalls))
	}
	if store.resolveCalls[0].note != "source fixed upstream" {
		t.Errorf("unexpected resolve note: %q", store.resolveCalls[0].note)
	}
}

func TestResolveAlert_NoteOptional(t *testing.T) {
	t.Parallel()

	store := openAlertStore(9)
	rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/9/resolve", `{}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if len(store.resolveCalls) != 1 || store.resolveCalls[0].note != "" {
		t.Errorf("expected resolve with empty note, got %+v", store.resolveCalls)
	}
}

func TestResolveAlert_WrongState(t *testing.T) {
	t.Parallel()

	store := openAlertStore(9)
	store.resolveResult = false

	rec := serve(store, testAPIConfig(), postJSON("/api/v1/alerts/9/resolve", `{}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}
