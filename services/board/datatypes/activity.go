// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Action classifies what a mutation did to a task.
type Action string

const (
	ActionCreated          Action = "created"
	ActionUpdated          Action = "updated"
	ActionDeleted          Action = "deleted"
	ActionMoved            Action = "moved"
	ActionAssigned         Action = "assigned"
	ActionReassigned       Action = "reassigned"
	ActionResolvedConflict Action = "resolved conflict"
	ActionBulkUpdated      Action = "bulk updated"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionMoved,
		ActionAssigned, ActionReassigned, ActionResolvedConflict, ActionBulkUpdated:
		return true
	}
	return false
}

// Activity is one immutable entry in the append-only audit trail.
//
// TaskTitle and User are denormalized at write time so the entry stays
// readable after the task is deleted or the user changes their name.
// Entries are never updated; they are removed only by the age-based
// retention purge.
type Activity struct {
	ID string `json:"id"`

	Action Action `json:"action"`

	// TaskID references the affected task. For bulk updates this is the
	// first task of the batch.
	TaskID string `json:"taskId"`

	// TaskTitle is the task's title at mutation time. Survives deletion.
	TaskTitle string `json:"taskTitle"`

	// User is a snapshot of the acting user at mutation time.
	User UserRef `json:"user"`

	// Details is a free-text description, e.g. "Moved from todo to done".
	Details string `json:"details"`

	CreatedAt time.Time `json:"createdAt"`
}
