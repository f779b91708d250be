// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package snapshot

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/metricus/metricus/internal/logging"
)

// ErrNoSnapshot is returned when no persisted snapshot exists yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

const (
	latestKey     = "snapshot:latest"
	historyPrefix = "snapshot:history:"
	historyTTL    = 7 * 24 * time.Hour
)

// BadgerStore persists published snapshots so a restart can serve the last
// known analytics immediately instead of waiting for the first refresh
// cycle to finish.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens the snapshot store at dir. An empty dir opens an
// in-memory store, which tests use.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Save persists snap as the latest snapshot and appends it to the bounded
// history (entries expire after a week).
func (b *BadgerStore) Save(snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(latestKey), payload); err != nil {
			return err
		}
		historyKey := historyPrefix + snap.ComputedAt.UTC().Format(time.RFC3339Nano)
		entry := badger.NewEntry([]byte(historyKey), payload).WithTTL(historyTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	logging.Debug().
		Time("computed_at", snap.ComputedAt).
		Int("bytes", len(payload)).
		Msg("Snapshot persisted")
	return nil
}

// LoadLatest returns the most recently persisted snapshot.
func (b *BadgerStore) LoadLatest() (*Snapshot, error) {
	var payload []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoSnapshot
		}
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(payload, snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// Close releases the underlying Badger database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
