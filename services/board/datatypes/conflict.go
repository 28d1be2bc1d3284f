// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// ResolutionStrategy selects how a detected conflict is resolved.
type ResolutionStrategy string

const (
	// ResolutionCurrent keeps the stored record and discards the
	// incoming one.
	ResolutionCurrent ResolutionStrategy = "current"

	// ResolutionIncoming replaces the stored record with the incoming
	// one.
	ResolutionIncoming ResolutionStrategy = "incoming"

	// ResolutionMerge reconciles the two records field by field:
	// latest timestamp, non-empty description preferred from incoming,
	// higher priority; all other fields keep the stored values.
	ResolutionMerge ResolutionStrategy = "merge"
)

// Valid reports whether s is one of the three resolution strategies.
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case ResolutionCurrent, ResolutionIncoming, ResolutionMerge:
		return true
	}
	return false
}

// ConflictEnvelope is the transient payload broadcast when a version
// mismatch is detected. It is constructed, broadcast once, and discarded;
// the server holds no conflict state beyond the response cycle. It must
// carry both snapshots so a client can offer resolution without a second
// fetch.
type ConflictEnvelope struct {
	TaskID    string `json:"taskId"`
	TaskTitle string `json:"taskTitle"`

	// CurrentVersion is the authoritative stored task.
	CurrentVersion *Task `json:"currentVersion"`

	// IncomingVersion is the partial update the losing client submitted.
	IncomingVersion UpdateTaskRequest `json:"incomingVersion"`

	// User1 names the user whose write produced the stored version,
	// "Unknown" when the task has not been mutated since creation
	// tracking began.
	User1 string `json:"user1"`

	// User2 names the user whose update lost.
	User2 string `json:"user2"`
}

// ResolveConflictRequest carries a client's chosen resolution for a
// previously broadcast conflict, with the two divergent snapshots the
// client received in the envelope and its own local copy.
type ResolveConflictRequest struct {
	Resolution      ResolutionStrategy `json:"resolution" binding:"required"`
	CurrentVersion  Task               `json:"currentVersion" binding:"required"`
	IncomingVersion Task               `json:"incomingVersion" binding:"required"`
}
