// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package journal is a Badger-backed write-ahead journal for intake
// payloads.
//
// A payload is journaled before the pipeline touches it and confirmed
// once its run log is finalized, so a crash mid-run leaves a pending
// entry that the next start replays. Replay is safe because fingerprint
// deduplication makes re-merging the same payload idempotent. Confirmed
// entries are kept for a retention window (Badger native TTL) and then
// expire.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
)

var (
	// ErrClosed is returned for operations on a closed journal.
	ErrClosed = errors.New("journal is closed")
	// ErrNotFound is returned when an entry ID has no pending entry.
	ErrNotFound = errors.New("journal entry not found")
	// ErrNilPayload is returned when a nil payload is written.
	ErrNilPayload = errors.New("nil payload")
)

const (
	prefixPending = "pending:"
	prefixDone    = "done:"

	defaultRetention = 72 * time.Hour
)

// Entry is one journaled payload with its processing bookkeeping.
type Entry struct {
	ID          string          `json:"id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
}

// UnmarshalPayload decodes the journaled payload.
func (e *Entry) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Journal persists intake payloads until their runs are confirmed.
type Journal struct {
	db        *badger.DB
	retention time.Duration

	pending atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the journal at the configured path.
func Open(cfg config.JournalConfig) (*Journal, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal path is required")
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %s: %w", cfg.Path, err)
	}

	j := &Journal{db: db, retention: retention}
	if err := j.countPending(); err != nil {
		_ = db.Close()
		return nil, err
	}
	metrics.SetJournalPending(j.pending.Load())

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Int64("pending", j.pending.Load()).
		Msg("journal opened")
	return j, nil
}

// Write journals a payload before processing and returns the entry ID
// used to confirm it later.
func (j *Journal) Write(ctx context.Context, payload *models.ScrapePayload) (string, error) {
	if err := j.ensureOpen(); err != nil {
		return "", err
	}
	if payload == nil {
		return "", ErrNilPayload
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	key := []byte(prefixPending + entry.ID)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write journal entry: %w", err)
	}

	metrics.RecordJournalWrite()
	metrics.SetJournalPending(j.pending.Add(1))
	return entry.ID, nil
}

// Confirm moves a pending entry to the retained done set. Called after
// the payload's run log is finalized.
func (j *Journal) Confirm(ctx context.Context, entryID string) error {
	if err := j.ensureOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrNotFound
	}

	pendingKey := []byte(prefixPending + entryID)
	doneKey := []byte(prefixDone + entryID)

	err := j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get pending entry: %w", err)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal entry: %w", err)
		}

		now := time.Now().UTC()
		entry.ConfirmedAt = &now
		raw, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("failed to marshal confirmed entry: %w", err)
		}

		// Confirmed entries expire on their own after the retention
		// window.
		e := badger.NewEntry(doneKey, raw).WithTTL(j.retention)
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("failed to set confirmed entry: %w", err)
		}
		return txn.Delete(pendingKey)
	})
	if err != nil {
		return err
	}

	metrics.SetJournalPending(j.pending.Add(-1))
	return nil
}

// Fail records a processing failure against a pending entry so replay
// attempts are visible in the journal itself.
func (j *Journal) Fail(ctx context.Context, entryID string, cause error) error {
	if err := j.ensureOpen(); err != nil {
		return err
	}

	key := []byte(prefixPending + entryID)
	return j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get pending entry: %w", err)
		}

		var entry Entry
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal entry: %w", err)
		}

		entry.Attempts++
		if cause != nil {
			entry.LastError = cause.Error()
		}
		raw, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		return txn.Set(key, raw)
	})
}

// Pending returns every unconfirmed entry, oldest write order not
// guaranteed. Malformed entries are skipped with a warning rather than
// blocking recovery.
func (j *Journal) Pending(ctx context.Context) ([]*Entry, error) {
	if err := j.ensureOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("skipping malformed journal entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate pending entries: %w", err)
	}
	return entries, nil
}

// PendingCount returns the number of unconfirmed entries.
func (j *Journal) PendingCount() int64 {
	return j.pending.Load()
}

// RunGC reclaims Badger value-log space. Call periodically; returns
// nil when there was nothing to rewrite.
func (j *Journal) RunGC() error {
	if err := j.ensureOpen(); err != nil {
		return err
	}
	err := j.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close shuts the journal down. Further operations return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}

func (j *Journal) ensureOpen() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	return nil
}

func (j *Journal) countPending() error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var count int64
		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		j.pending.Store(count)
		return nil
	})
}
