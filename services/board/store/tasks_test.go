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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlab/boardsync/services/board/datatypes"
	"github.com/kanbanlab/boardsync/services/board/storage/badger"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTask(title string) *datatypes.Task {
	return &datatypes.Task{
		Title:     title,
		Status:    datatypes.StatusTodo,
		Priority:  datatypes.PriorityMedium,
		CreatedBy: datatypes.UserRef{ID: "u1", Name: "Ada", Email: "ada@example.com"},
	}
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	task := newTask("Write release notes")
	require.NoError(t, s.Create(ctx, task))

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, int64(1), task.Version)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, int64(1), got.Version)
}

func TestTaskStore_Get_NotFound(t *testing.T) {
	s := NewTaskStore(newTestDB(t))

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_Create_DuplicateTitle(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTask("Unique")))
	err := s.Create(ctx, newTask("Unique"))
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

func TestTaskStore_TitleUniqueness_CaseSensitive(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTask("Deploy")))
	require.NoError(t, s.Create(ctx, newTask("deploy")))
}

func TestTaskStore_Update_IncrementsVersion(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	task := newTask("Ship it")
	require.NoError(t, s.Create(ctx, task))

	updated, err := s.Update(ctx, task.ID, func(t *datatypes.Task) error {
		t.Status = datatypes.StatusInProgress
		t.Version++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, datatypes.StatusInProgress, updated.Status)
	assert.True(t, updated.UpdatedAt.After(task.CreatedAt) || updated.UpdatedAt.Equal(task.CreatedAt))
}

func TestTaskStore_Update_RejectsNonIncrement(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	task := newTask("Versioned")
	require.NoError(t, s.Create(ctx, task))

	_, err := s.Update(ctx, task.ID, func(t *datatypes.Task) error {
		t.Status = datatypes.StatusDone
		return nil // forgot the increment
	})
	require.Error(t, err)

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StatusTodo, got.Status, "failed update must not mutate storage")
}

func TestTaskStore_Update_Rename_MaintainsIndex(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	task := newTask("Old name")
	require.NoError(t, s.Create(ctx, task))

	_, err := s.Update(ctx, task.ID, func(t *datatypes.Task) error {
		t.Title = "New name"
		t.Version++
		return nil
	})
	require.NoError(t, err)

	// The old title is free again, the new one is taken.
	require.NoError(t, s.Create(ctx, newTask("Old name")))
	err = s.Create(ctx, newTask("New name"))
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

func TestTaskStore_Update_Rename_DuplicateRejected(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	a := newTask("Task A")
	b := newTask("Task B")
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	_, err := s.Update(ctx, b.ID, func(t *datatypes.Task) error {
		t.Title = "Task A"
		t.Version++
		return nil
	})
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

func TestTaskStore_Update_ClosureErrorAborts(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	task := newTask("Guarded")
	require.NoError(t, s.Create(ctx, task))

	sentinel := errors.New("conflict")
	_, err := s.Update(ctx, task.ID, func(t *datatypes.Task) error {
		t.Status = datatypes.StatusDone
		t.Version++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, datatypes.StatusTodo, got.Status)
}

// TestTaskStore_Update_ConcurrentStaleWriters is the §5-style race: many
// writers read the same initial version and all insist on it. Exactly one
// may win; the rest must fail their precondition against the fresh record.
func TestTaskStore_Update_ConcurrentStaleWriters(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	task := newTask("Contended")
	require.NoError(t, s.Create(ctx, task))
	staleVersion := task.Version

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	errStale := errors.New("stale version")

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, task.ID, func(t *datatypes.Task) error {
				if t.Version != staleVersion {
					return errStale
				}
				t.Status = datatypes.StatusInProgress
				t.Version++
				return nil
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, errStale) {
				conflicts++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one writer may win")
	assert.Equal(t, 7, conflicts)

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, staleVersion+1, got.Version, "version advanced exactly once")
}

func TestTaskStore_Delete(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	task := newTask("Short lived")
	require.NoError(t, s.Create(ctx, task))

	deleted, err := s.Delete(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, deleted.ID)

	_, err = s.Get(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// Title is released.
	require.NoError(t, s.Create(ctx, newTask("Short lived")))
}

func TestTaskStore_Delete_NotFound(t *testing.T) {
	s := NewTaskStore(newTestDB(t))

	_, err := s.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_ActiveCounts(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	assign := func(title string, status datatypes.Status, userID string) {
		task := newTask(title)
		task.Status = status
		if userID != "" {
			task.AssignedTo = &datatypes.UserRef{ID: userID, Name: userID}
		}
		require.NoError(t, s.Create(ctx, task))
	}

	assign("t1", datatypes.StatusTodo, "alice")
	assign("t2", datatypes.StatusInProgress, "alice")
	assign("t3", datatypes.StatusDone, "alice") // done does not count
	assign("t4", datatypes.StatusTodo, "bob")
	assign("t5", datatypes.StatusTodo, "") // unassigned does not count

	counts, err := s.ActiveCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"alice": 2, "bob": 1}, counts)
}

func TestTaskStore_List_NewestFirst(t *testing.T) {
	s := NewTaskStore(newTestDB(t))
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, s.Create(ctx, newTask(title)))
	}

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for i := 0; i < len(tasks)-1; i++ {
		assert.False(t, tasks[i].CreatedAt.Before(tasks[i+1].CreatedAt))
	}
}
