// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"context"
	"testing"
	"time"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/models"
)

// testDBSemaphore serializes database creation. Concurrent DuckDB CGO
// calls from parallel tests can hang under CI resource pressure, so only
// one test holds an active connection at a time. The semaphore is held
// for the whole test lifecycle and released via t.Cleanup.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates an in-memory test database with timeout protection.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	type result struct {
		db  *DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

// insertTestKennel creates a kennel for tests.
func insertTestKennel(t *testing.T, db *DB, name, shortName string) *models.Kennel {
	t.Helper()
	kennel := &models.Kennel{
		Name:      name,
		ShortName: shortName,
		Region:    "NYC Metro",
		Timezone:  "America/New_York",
	}
	if err := db.CreateKennel(context.Background(), kennel); err != nil {
		t.Fatalf("Failed to create test kennel %s: %v", shortName, err)
	}
	return kennel
}

// insertTestSource creates a source for tests.
func insertTestSource(t *testing.T, db *DB, name string, trustLevel int) *models.Source {
	t.Helper()
	source := &models.Source{
		Name:        name,
		AdapterType: models.AdapterTypeHTML,
		URL:         "https://example.com/" + name,
		TrustLevel:  trustLevel,
		Enabled:     true,
	}
	if err := db.CreateSource(context.Background(), source); err != nil {
		t.Fatalf("Failed to create test source %s: %v", name, err)
	}
	return source
}

// linkTestKennel links a source to a kennel for tests.
func linkTestKennel(t *testing.T, db *DB, sourceID, kennelID int64) {
	t.Helper()
	if err := db.LinkSourceKennel(context.Background(), sourceID, kennelID); err != nil {
		t.Fatalf("Failed to link source %d to kennel %d: %v", sourceID, kennelID, err)
	}
}

func TestNew_InitializesSchema(t *testing.T) {
	db := setupTestDB(t)

	// Schema exists if a roundtrip through a created table works
	kennel := insertTestKennel(t, db, "New York City Hash House Harriers", "NYCH3")
	if kennel.ID == 0 {
		t.Error("expected generated kennel ID, got 0")
	}

	got, err := db.GetKennel(context.Background(), kennel.ID)
	if err != nil {
		t.Fatalf("GetKennel failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected kennel, got nil")
	}
	if got.ShortName != "NYCH3" {
		t.Errorf("expected short name NYCH3, got %s", got.ShortName)
	}
}

func TestNew_IdempotentSchema(t *testing.T) {
	db := setupTestDB(t)

	// Re-running initialization against the same connection must not fail
	if err := db.initialize(); err != nil {
		t.Fatalf("Second initialize failed: %v", err)
	}
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestPing_NilContext(t *testing.T) {
	db := setupTestDB(t)

	//nolint:staticcheck // Verifies ensureContext handles nil gracefully
	if err := db.Ping(nil); err != nil {
		t.Errorf("Ping with nil context failed: %v", err)
	}
}

func TestCheckpoint(t *testing.T) {
	db := setupTestDB(t)

	insertTestKennel(t, db, "Brooklyn Hash House Harriers", "BH3")

	if err := db.Checkpoint(context.Background()); err != nil {
		t.Errorf("Checkpoint failed: %v", err)
	}
}

func TestConn_ReturnsUsableConnection(t *testing.T) {
	db := setupTestDB(t)

	var one int
	if err := db.Conn().QueryRowContext(context.Background(), "SELECT 1").Scan(&one); err != nil {
		t.Fatalf("Raw query failed: %v", err)
	}
	if one != 1 {
		t.Errorf("expected 1, got %d", one)
	}
}

func TestEnsureContext_PreservesDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ctx, cancel2 := ensureContext(parent)
	defer cancel2()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline to be preserved")
	}
	parentDeadline, _ := parent.Deadline()
	if !deadline.Equal(parentDeadline) {
		t.Errorf("expected deadline %v, got %v", parentDeadline, deadline)
	}
}

func TestEnsureContext_AddsDeadline(t *testing.T) {
	ctx, cancel := ensureContext(context.Background())
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected a deadline to be added to an unbounded context")
	}
}
