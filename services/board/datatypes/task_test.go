// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReservedTitle(t *testing.T) {
	reserved := []string{
		"todo", "Todo", "TODO",
		"done", "Done",
		"in-progress", "In-Progress",
		"to do", "To Do",
		"in progress", "IN PROGRESS",
	}
	for _, title := range reserved {
		assert.True(t, IsReservedTitle(title), "%q should be reserved", title)
	}

	allowed := []string{"Fix login bug", "todos", "progress", "done deal", ""}
	for _, title := range allowed {
		assert.False(t, IsReservedTitle(title), "%q should be allowed", title)
	}
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())
	assert.Equal(t, -1, Priority("urgent").Rank())
}

func TestStatusActive(t *testing.T) {
	assert.True(t, StatusTodo.Active())
	assert.True(t, StatusInProgress.Active())
	assert.False(t, StatusDone.Active())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusTodo.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusDone.Valid())
	assert.False(t, Status("archived").Valid())
}

func TestResolutionStrategyValid(t *testing.T) {
	assert.True(t, ResolutionCurrent.Valid())
	assert.True(t, ResolutionIncoming.Valid())
	assert.True(t, ResolutionMerge.Valid())
	assert.False(t, ResolutionStrategy("overwrite").Valid())
}

func TestTaskClone_Independent(t *testing.T) {
	orig := &Task{
		ID:         "t1",
		Title:      "A",
		AssignedTo: &UserRef{ID: "u1", Name: "Ada"},
		UpdatedBy:  &UserRef{ID: "u2", Name: "Bob"},
	}

	clone := orig.Clone()
	clone.Title = "B"
	clone.AssignedTo.Name = "Changed"

	assert.Equal(t, "A", orig.Title)
	assert.Equal(t, "Ada", orig.AssignedTo.Name)
}

func TestUpdateTaskRequestEmpty(t *testing.T) {
	assert.True(t, UpdateTaskRequest{}.Empty())

	v := int64(3)
	assert.True(t, UpdateTaskRequest{Version: &v}.Empty(), "version alone is not a field change")

	title := "x"
	assert.False(t, UpdateTaskRequest{Title: &title}.Empty())
}

func TestUserRefDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", UserRef{ID: "u1", Name: "Ada"}.DisplayName())
	assert.Equal(t, "u1", UserRef{ID: "u1"}.DisplayName())
}
