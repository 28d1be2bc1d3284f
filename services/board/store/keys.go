// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store implements the board's persistence layer on BadgerDB.
//
// Three record families share one keyspace:
//
//	task:<id>                          -> Task JSON
//	title:<title>                      -> task id (uniqueness index, case-sensitive)
//	act:<nanos>:<id>                   -> Activity JSON (global time order)
//	acttask:<taskID>:<inv-nanos>:<id>  -> primary activity key (per-task, newest first)
//	user:<id>                          -> directory entry JSON
//
// Timestamps in keys are zero-padded to 20 digits so lexicographic order
// equals chronological order; the per-task index inverts the timestamp so
// a forward scan yields newest-first.
//
// Task mutations go through TaskStore.Update, which runs the caller's
// closure inside a serializable Badger transaction and retries on commit
// conflict. A stale concurrent writer therefore re-runs its closure
// against the fresh record and its version check fails there — there is
// no window between the version check and the committed write.
package store

import (
	"fmt"
	"math"
	"time"
)

const (
	taskPrefix      = "task:"
	titlePrefix     = "title:"
	activityPrefix  = "act:"
	taskActPrefix   = "acttask:"
	userPrefix      = "user:"
	userSequenceKey = "seq:user"
)

func taskKey(id string) []byte {
	return []byte(taskPrefix + id)
}

func titleKey(title string) []byte {
	return []byte(titlePrefix + title)
}

func activityKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", activityPrefix, at.UnixNano(), id))
}

func taskActivityKey(taskID string, at time.Time, id string) []byte {
	inverted := uint64(math.MaxInt64 - at.UnixNano())
	return []byte(fmt.Sprintf("%s%s:%020d:%s", taskActPrefix, taskID, inverted, id))
}

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}
