// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package dedup is a BadgerDB-backed record of which users were already
// told about which marker. It lets the proximity engine avoid repeating a
// map_notification after a reconnect or a restart.
//
// Entries carry a TTL equal to the remaining lifetime of the marker, so the
// store cleans itself up without a sweep.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
)

const (
	keyPrefix  = "notified:"
	gcInterval = 10 * time.Minute
	gcRatio    = 0.5
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("notification ledger is closed")

// Ledger implements the engine's notification ledger.
type Ledger struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens the ledger described by cfg.
func Open(cfg config.DedupConfig) (*Ledger, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for notification ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// NewFromDB wraps an already open database.
func NewFromDB(db *badger.DB) *Ledger {
	return &Ledger{db: db}
}

func markerPrefix(markerID string) []byte {
	return []byte(keyPrefix + markerID + ":")
}

func entryKey(markerID, userID string) []byte {
	return append(markerPrefix(markerID), userID...)
}

func (l *Ledger) usable() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return nil
}

// NotifiedUsers returns the users recorded as notified about markerID.
func (l *Ledger) NotifiedUsers(markerID string) ([]string, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	prefix := markerPrefix(markerID)
	var users []string
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			users = append(users, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger read for marker %s: %w", markerID, err)
	}
	return users, nil
}

// MarkNotified records that userIDs were notified about markerID. Entries
// expire after ttl.
func (l *Ledger) MarkNotified(markerID string, userIDs []string, ttl time.Duration) error {
	if err := l.usable(); err != nil {
		return err
	}
	if len(userIDs) == 0 || ttl <= 0 {
		return nil
	}

	wb := l.db.NewWriteBatch()
	defer wb.Cancel()
	now := []byte(time.Now().UTC().Format(time.RFC3339))
	for _, u := range userIDs {
		if err := wb.SetEntry(badger.NewEntry(entryKey(markerID, u), now).WithTTL(ttl)); err != nil {
			return fmt.Errorf("ledger write for marker %s: %w", markerID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ledger flush for marker %s: %w", markerID, err)
	}
	return nil
}

// Forget drops every entry of markerID.
func (l *Ledger) Forget(markerID string) error {
	if err := l.usable(); err != nil {
		return err
	}
	if err := l.db.DropPrefix(markerPrefix(markerID)); err != nil {
		return fmt.Errorf("ledger drop for marker %s: %w", markerID, err)
	}
	return nil
}

// Count returns the number of live entries.
func (l *Ledger) Count() (int, error) {
	if err := l.usable(); err != nil {
		return 0, err
	}
	n := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Serve runs value log garbage collection until ctx is done. It implements
// suture.Service.
func (l *Ledger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.usable(); err != nil {
				return err
			}
			// ErrNoRewrite just means there was nothing to collect.
			for l.db.RunValueLogGC(gcRatio) == nil {
			}
			logging.Debug().Msg("Notification ledger GC pass finished")
		}
	}
}

func (l *Ledger) String() string {
	return "notification-ledger"
}

// Close closes the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
