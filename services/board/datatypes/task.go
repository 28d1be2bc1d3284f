// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the board domain entities and the request
// types accepted by the HTTP layer.
//
// Validation is expressed with go-playground/validator tags, registered
// against gin's binding engine plus a custom "tasktitle" validator that
// rejects titles matching the board's column names.
package datatypes

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxTitleLength is the maximum task title length in characters.
	MaxTitleLength = 100

	// MaxDescriptionLength is the maximum description length in characters.
	MaxDescriptionLength = 500
)

// Status is a task's board column.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the three board columns.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Active reports whether a task in this status counts toward a user's
// active-task load for smart assignment.
func (s Status) Active() bool {
	return s == StatusTodo || s == StatusInProgress
}

// Priority is a task's urgency level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank returns the ordering position of the priority: low < medium < high.
// Unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	}
	return -1
}

// reservedTitles are the column-name strings a task title must not equal,
// compared case-insensitively. A card titled "Done" would be
// indistinguishable from the column header in the board UI.
var reservedTitles = []string{"todo", "in-progress", "done", "to do", "in progress"}

// IsReservedTitle reports whether title matches a board column name,
// case-insensitively.
func IsReservedTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, r := range reservedTitles {
		if lower == r {
			return true
		}
	}
	return false
}

// =============================================================================
// Task Entity
// =============================================================================

// Task is a card on the shared board.
//
// Version starts at 1 and increments by exactly 1 on every accepted
// mutation; it is the basis for optimistic concurrency control. Assignee
// and creator are denormalized UserRef snapshots (the document store has
// no joins).
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`

	// AssignedTo is nil while the task is unassigned.
	AssignedTo *UserRef `json:"assignedTo"`

	// CreatedBy is set at creation and never changes.
	CreatedBy UserRef `json:"createdBy"`

	// UpdatedBy identifies the last user to mutate the task. Nil until
	// the first post-creation mutation.
	UpdatedBy *UserRef `json:"updatedBy,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		c.AssignedTo = &a
	}
	if t.UpdatedBy != nil {
		u := *t.UpdatedBy
		c.UpdatedBy = &u
	}
	return &c
}

// =============================================================================
// Request Types
// =============================================================================

// CreateTaskRequest is the payload for creating a task.
type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=100,tasktitle"`
	Description string `json:"description" binding:"omitempty,max=500"`
	Status      string `json:"status" binding:"omitempty,oneof=todo in-progress done"`
	Priority    string `json:"priority" binding:"omitempty,oneof=low medium high"`

	// AssignedTo is the id of the initial assignee, if any.
	AssignedTo string `json:"assignedTo" binding:"omitempty"`
}

// UpdateTaskRequest is the partial-update payload for a task. Nil fields
// are left untouched. Version, when present, is the version the client
// last read; a mismatch with the stored version is a conflict.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty" binding:"omitempty,min=1,max=100,tasktitle"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=500"`
	Status      *string `json:"status,omitempty" binding:"omitempty,oneof=todo in-progress done"`
	Priority    *string `json:"priority,omitempty" binding:"omitempty,oneof=low medium high"`

	// AssignedTo is the id of the new assignee. An explicit empty string
	// unassigns the task.
	AssignedTo *string `json:"assignedTo,omitempty"`

	// Version is the client-held task version. Omitted by clients unaware
	// of concurrency control, in which case the update proceeds
	// unconditionally.
	Version *int64 `json:"version,omitempty"`
}

// Empty reports whether the update carries no field changes at all.
func (r UpdateTaskRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Status == nil &&
		r.Priority == nil && r.AssignedTo == nil
}

// BulkUpdateFields is the shared partial update applied to every task in
// a bulk operation. Titles are excluded: a shared title would violate
// title uniqueness on the second task.
type BulkUpdateFields struct {
	Status     *string `json:"status,omitempty" binding:"omitempty,oneof=todo in-progress done"`
	Priority   *string `json:"priority,omitempty" binding:"omitempty,oneof=low medium high"`
	AssignedTo *string `json:"assignedTo,omitempty"`
}

// BulkUpdateRequest applies the same partial update to a set of tasks.
type BulkUpdateRequest struct {
	TaskIDs []string         `json:"taskIds" binding:"required,min=1"`
	Updates BulkUpdateFields `json:"updates"`
}

// ReassignTaskRequest changes only the assignee of a task. An empty
// AssignedTo unassigns it.
type ReassignTaskRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// =============================================================================
// Validator Registration
// =============================================================================

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("tasktitle", validateTaskTitle)
	}
}

// validateTaskTitle rejects titles that collide with board column names.
func validateTaskTitle(fl validator.FieldLevel) bool {
	return !IsReservedTitle(fl.Field().String())
}
