// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/kanbanlab/boardsync/services/board/datatypes"
	"github.com/kanbanlab/boardsync/services/board/storage/badger"
)

// ActivityStore persists the append-only activity log.
//
// Entries are keyed by creation time so the global feed and per-task
// history read in time order without sorting. Entries are immutable;
// the only delete path is the age-based purge.
type ActivityStore struct {
	db *badger.DB
}

// NewActivityStore creates an ActivityStore on the given database.
func NewActivityStore(db *badger.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Append writes one activity entry. The store assigns the id and
// timestamp when unset.
func (s *ActivityStore) Append(ctx context.Context, a *datatypes.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}

	primary := activityKey(a.CreatedAt, a.ID)
	return s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		if err := txn.Set(primary, data); err != nil {
			return err
		}
		return txn.Set(taskActivityKey(a.TaskID, a.CreatedAt, a.ID), primary)
	})
}

// ListByTask returns up to limit activity entries for one task, newest
// first.
func (s *ActivityStore) ListByTask(ctx context.Context, taskID string, limit int) ([]*datatypes.Activity, error) {
	prefix := []byte(taskActPrefix + taskID + ":")
	var out []*datatypes.Activity

	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Index keys embed an inverted timestamp, so a forward scan is
		// already newest-first.
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			primary, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(primary)
			if err != nil {
				return fmt.Errorf("resolve activity index entry: %w", err)
			}
			var a datatypes.Activity
			if err := decodeItem(item, &a); err != nil {
				return err
			}
			out = append(out, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecent returns one page of the global activity feed, newest first,
// along with the total number of entries.
func (s *ActivityStore) ListRecent(ctx context.Context, limit, offset int) ([]*datatypes.Activity, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	prefix := []byte(activityPrefix)
	// Seek target just past the prefix range for the reverse scan.
	seek := append(append([]byte{}, prefix...), 0xFF)

	var out []*datatypes.Activity
	total := 0

	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if total >= offset && len(out) < limit {
				var a datatypes.Activity
				if err := decodeItem(it.Item(), &a); err != nil {
					return err
				}
				out = append(out, &a)
			}
			total++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// PurgeOlderThan deletes every activity entry created before cutoff and
// returns the number removed. Deletes go through a write batch; entries
// are immutable so there is no conflict window to protect.
func (s *ActivityStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	type doomed struct {
		primary []byte
		index   []byte
	}
	var victims []doomed

	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		prefix := []byte(activityPrefix)
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ts, ok := activityKeyTime(it.Item().Key())
			if !ok {
				continue
			}
			if !ts.Before(cutoff) {
				// Keys are in ascending time order; nothing newer
				// can be older than the cutoff.
				return nil
			}
			var a datatypes.Activity
			if err := decodeItem(it.Item(), &a); err != nil {
				return err
			}
			victims = append(victims, doomed{
				primary: it.Item().KeyCopy(nil),
				index:   taskActivityKey(a.TaskID, a.CreatedAt, a.ID),
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, v := range victims {
		if err := wb.Delete(v.primary); err != nil {
			return 0, fmt.Errorf("purge activity: %w", err)
		}
		if err := wb.Delete(v.index); err != nil {
			return 0, fmt.Errorf("purge activity index: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush purge batch: %w", err)
	}
	return len(victims), nil
}

// activityKeyTime extracts the creation timestamp embedded in a primary
// activity key.
func activityKeyTime(key []byte) (time.Time, bool) {
	rest := strings.TrimPrefix(string(key), activityPrefix)
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(rest[:idx], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}
