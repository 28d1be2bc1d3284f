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
	"errors"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/kanbanlab/boardsync/services/board/datatypes"
	"github.com/kanbanlab/boardsync/services/board/storage/badger"
)

var (
	// ErrTaskNotFound is returned when the referenced task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDuplicateTitle is returned when a create or rename would collide
	// with another task's title. Comparison is case-sensitive.
	ErrDuplicateTitle = errors.New("task title must be unique")
)

// maxCommitRetries bounds how often an update closure is re-run when the
// underlying transaction loses a commit race. Each retry re-reads the
// record, so a stale writer fails its version check on the next attempt
// rather than looping here.
const maxCommitRetries = 8

// TaskStore persists tasks with a version counter and a title-uniqueness
// index.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Concurrent Update calls on
// the same task serialize through Badger's transaction conflict
// detection.
type TaskStore struct {
	db *badger.DB
}

// NewTaskStore creates a TaskStore on the given database.
func NewTaskStore(db *badger.DB) *TaskStore {
	return &TaskStore{db: db}
}

// Create persists a new task. The store assigns the id (when empty),
// timestamps, and the initial version of 1. Returns ErrDuplicateTitle if
// another task already holds the title.
func (s *TaskStore) Create(ctx context.Context, t *datatypes.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now

	for attempt := 0; ; attempt++ {
		err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
			if _, err := txn.Get(titleKey(t.Title)); err == nil {
				return ErrDuplicateTitle
			} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return fmt.Errorf("check title index: %w", err)
			}
			if err := setJSON(txn, taskKey(t.ID), t); err != nil {
				return err
			}
			return txn.Set(titleKey(t.Title), []byte(t.ID))
		})
		if errors.Is(err, badgerdb.ErrConflict) && attempt < maxCommitRetries {
			continue
		}
		return err
	}
}

// Get returns the task with the given id, or ErrTaskNotFound.
func (s *TaskStore) Get(ctx context.Context, id string) (*datatypes.Task, error) {
	var t datatypes.Task
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		return getTask(txn, id, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns all tasks, newest first.
func (s *TaskStore) List(ctx context.Context) ([]*datatypes.Task, error) {
	var tasks []*datatypes.Task
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(taskPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(taskPrefix)); it.ValidForPrefix([]byte(taskPrefix)); it.Next() {
			var t datatypes.Task
			if err := decodeItem(it.Item(), &t); err != nil {
				return err
			}
			tasks = append(tasks, &t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// Update applies a mutation closure to the stored task inside a single
// serializable transaction.
//
// The closure receives the freshly read record and is responsible for
// the version increment; Update rejects a closure that does not strictly
// increase the version. Title renames are validated against the
// uniqueness index and the index is kept consistent within the same
// transaction.
//
// When the commit loses a race against a concurrent writer the whole
// read-mutate-commit cycle is retried: the closure re-runs against the
// now-current record, so any version precondition inside it is
// re-evaluated against fresh state. This is the atomic conditional write
// that closes the read-then-write gap; the closure returning an error
// (for example a version-mismatch conflict) aborts without mutating
// storage.
func (s *TaskStore) Update(ctx context.Context, id string, apply func(t *datatypes.Task) error) (*datatypes.Task, error) {
	var updated *datatypes.Task

	for attempt := 0; ; attempt++ {
		err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
			var t datatypes.Task
			if err := getTask(txn, id, &t); err != nil {
				return err
			}
			prevVersion := t.Version
			prevTitle := t.Title

			if err := apply(&t); err != nil {
				return err
			}
			if t.Version <= prevVersion {
				return fmt.Errorf("task %s: version must strictly increase (%d -> %d)", id, prevVersion, t.Version)
			}

			if t.Title != prevTitle {
				if item, err := txn.Get(titleKey(t.Title)); err == nil {
					owner, err := item.ValueCopy(nil)
					if err != nil {
						return err
					}
					if string(owner) != id {
						return ErrDuplicateTitle
					}
				} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
					return fmt.Errorf("check title index: %w", err)
				}
				if err := txn.Delete(titleKey(prevTitle)); err != nil {
					return err
				}
				if err := txn.Set(titleKey(t.Title), []byte(id)); err != nil {
					return err
				}
			}

			t.UpdatedAt = time.Now().UTC()
			if err := setJSON(txn, taskKey(id), &t); err != nil {
				return err
			}
			updated = &t
			return nil
		})
		if errors.Is(err, badgerdb.ErrConflict) && attempt < maxCommitRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
}

// Delete removes the task and its title index entry, returning the
// deleted record. Returns ErrTaskNotFound when absent.
func (s *TaskStore) Delete(ctx context.Context, id string) (*datatypes.Task, error) {
	var t datatypes.Task

	for attempt := 0; ; attempt++ {
		err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
			if err := getTask(txn, id, &t); err != nil {
				return err
			}
			if err := txn.Delete(taskKey(id)); err != nil {
				return err
			}
			return txn.Delete(titleKey(t.Title))
		})
		if errors.Is(err, badgerdb.ErrConflict) && attempt < maxCommitRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
}

// ActiveCounts returns, per assignee user id, the number of tasks in an
// active status (todo, in-progress). Unassigned tasks are not counted.
func (s *TaskStore) ActiveCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(taskPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(taskPrefix)); it.ValidForPrefix([]byte(taskPrefix)); it.Next() {
			var t datatypes.Task
			if err := decodeItem(it.Item(), &t); err != nil {
				return err
			}
			if t.AssignedTo != nil && t.Status.Active() {
				counts[t.AssignedTo.ID]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// getTask reads and decodes a task within txn, mapping ErrKeyNotFound to
// ErrTaskNotFound.
func getTask(txn *badgerdb.Txn, id string, t *datatypes.Task) error {
	item, err := txn.Get(taskKey(id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("read task %s: %w", id, err)
	}
	return decodeItem(item, t)
}

func setJSON(txn *badgerdb.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return txn.Set(key, data)
}

func decodeItem(item *badgerdb.Item, v any) error {
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
