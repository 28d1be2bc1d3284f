// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conflict holds the pure decision logic of the board's
// optimistic concurrency control: the version guard that classifies an
// update as proceed-or-conflict, and the resolver that computes a
// resolved record from two divergent snapshots.
//
// Nothing in this package touches storage or the network; the mutation
// coordinator wires these decisions to their side effects.
package conflict

// Decision is the version guard's verdict on an update.
type Decision int

const (
	// Proceed means the update may be applied.
	Proceed Decision = iota

	// Conflict means the client wrote against a stale version and the
	// update must not touch storage.
	Conflict
)

// String returns "proceed" or "conflict".
func (d Decision) String() string {
	if d == Conflict {
		return "conflict"
	}
	return "proceed"
}

// Check decides whether an update against storedVersion may proceed.
//
// clientVersion is the version the client last read, or nil when the
// client is unaware of concurrency control — such clients always
// proceed (their write is a plain last-writer-wins read-modify-write).
// A non-nil clientVersion must match storedVersion exactly.
//
// On Proceed the caller must make the version increment part of the same
// atomic write that persists the change; see store.TaskStore.Update.
func Check(clientVersion *int64, storedVersion int64) Decision {
	if clientVersion == nil {
		return Proceed
	}
	if *clientVersion != storedVersion {
		return Conflict
	}
	return Proceed
}
