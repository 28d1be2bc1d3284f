// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conflict

import (
	"fmt"

	"github.com/kanbanlab/boardsync/services/board/datatypes"
)

// Resolve computes the resolved record for two divergent task snapshots.
//
// It is a pure function: neither snapshot is mutated and no side effects
// occur. The three strategies:
//
//   - current: the stored record wins as-is
//   - incoming: the submitted record wins as-is
//   - merge: field-by-field reconciliation — later updatedAt, incoming's
//     description when non-empty, the higher-ranked priority (ties keep
//     current's); title, status, and assignee always keep current's
//     values, since those diverge with real semantic intent and are not
//     auto-merged
//
// Whatever the strategy, the result's version is one greater than the
// higher of the two snapshot versions, so the resolved record wins any
// subsequent guard check against either prior version.
//
// An unknown strategy is an input-validation failure at the call site;
// Resolve returns an error for it only as a safety net.
func Resolve(strategy datatypes.ResolutionStrategy, current, incoming datatypes.Task) (datatypes.Task, error) {
	var resolved datatypes.Task

	switch strategy {
	case datatypes.ResolutionCurrent:
		resolved = *current.Clone()

	case datatypes.ResolutionIncoming:
		resolved = *incoming.Clone()

	case datatypes.ResolutionMerge:
		resolved = *current.Clone()
		if incoming.UpdatedAt.After(resolved.UpdatedAt) {
			resolved.UpdatedAt = incoming.UpdatedAt
		}
		if incoming.Description != "" {
			resolved.Description = incoming.Description
		}
		if incoming.Priority.Rank() > resolved.Priority.Rank() {
			resolved.Priority = incoming.Priority
		}

	default:
		return datatypes.Task{}, fmt.Errorf("unknown resolution strategy %q", strategy)
	}

	resolved.Version = maxVersion(current.Version, incoming.Version) + 1
	return resolved, nil
}

func maxVersion(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
