// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/kanbanlab/boardsync/services/board/datatypes"
	"github.com/kanbanlab/boardsync/services/board/storage/badger"
)

// ErrUserNotFound is returned when the referenced user is not in the
// directory.
var ErrUserNotFound = errors.New("user not found")

// directoryEntry is the stored form of a directory user. Seq preserves
// first-encountered order, which is the smart-assign tie-break order.
type directoryEntry struct {
	User      datatypes.UserRef `json:"user"`
	Seq       uint64            `json:"seq"`
	CreatedAt time.Time         `json:"createdAt"`
}

// UserDirectory records every identity that has authenticated against
// the board. It is the population smart assignment selects from; it holds
// no credentials (those live behind the AuthProvider seam).
type UserDirectory struct {
	db  *badger.DB
	seq *badgerdb.Sequence
}

// NewUserDirectory creates a UserDirectory. Call Close to release the
// sequence's unused id range.
func NewUserDirectory(db *badger.DB) (*UserDirectory, error) {
	seq, err := db.GetSequence([]byte(userSequenceKey), 64)
	if err != nil {
		return nil, fmt.Errorf("open user sequence: %w", err)
	}
	return &UserDirectory{db: db, seq: seq}, nil
}

// Close releases the directory's sequence.
func (d *UserDirectory) Close() error {
	return d.seq.Release()
}

// Upsert records a user in the directory. First sight assigns the next
// sequence number; later calls refresh name and email but keep the
// original position.
func (d *UserDirectory) Upsert(ctx context.Context, u datatypes.UserRef) error {
	if u.ID == "" {
		return errors.New("user id is required")
	}

	for attempt := 0; ; attempt++ {
		err := d.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
			var entry directoryEntry
			item, err := txn.Get(userKey(u.ID))
			switch {
			case err == nil:
				if err := decodeItem(item, &entry); err != nil {
					return err
				}
				if entry.User == u {
					return nil // nothing changed
				}
				entry.User = u
			case errors.Is(err, badgerdb.ErrKeyNotFound):
				next, err := d.seq.Next()
				if err != nil {
					return fmt.Errorf("next user sequence: %w", err)
				}
				entry = directoryEntry{User: u, Seq: next, CreatedAt: time.Now().UTC()}
			default:
				return fmt.Errorf("read user %s: %w", u.ID, err)
			}
			return setJSON(txn, userKey(u.ID), &entry)
		})
		if errors.Is(err, badgerdb.ErrConflict) && attempt < maxCommitRetries {
			continue
		}
		return err
	}
}

// Get returns the directory entry for id, or ErrUserNotFound.
func (d *UserDirectory) Get(ctx context.Context, id string) (*datatypes.UserRef, error) {
	var entry directoryEntry
	err := d.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		item, err := txn.Get(userKey(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("read user %s: %w", id, err)
		}
		return decodeItem(item, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry.User, nil
}

// List returns all known users in first-encountered order.
func (d *UserDirectory) List(ctx context.Context) ([]datatypes.UserRef, error) {
	var entries []directoryEntry
	err := d.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		prefix := []byte(userPrefix)
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry directoryEntry
			if err := decodeItem(it.Item(), &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	users := make([]datatypes.UserRef, len(entries))
	for i, e := range entries {
		users[i] = e.User
	}
	return users, nil
}
