// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package realtime

// Board event names carried in the websocket envelope. Task events go to
// every member of the session, including the client whose request caused
// them; presence and editing relays exclude the originating client.
const (
	// EventTaskCreated carries the new task record.
	EventTaskCreated = "taskCreated"

	// EventTaskUpdated carries the full updated task record.
	EventTaskUpdated = "taskUpdated"

	// EventTaskDeleted carries the deleted task record.
	EventTaskDeleted = "taskDeleted"

	// EventConflict carries a conflict envelope when a version guard
	// rejects an update. Transient; the server keeps no conflict state.
	EventConflict = "conflict"

	// EventActivityUpdated carries the activity entry written for a
	// mutation. Always follows the mutation's primary event.
	EventActivityUpdated = "activityUpdated"

	// EventUserJoined and EventUserLeft are presence notifications with
	// payload {userId, userName}.
	EventUserJoined = "userJoined"
	EventUserLeft   = "userLeft"

	// EventUserEditing and EventUserStoppedEditing relay which task a
	// user has open for editing, payload {taskId, userId, userName}.
	EventUserEditing        = "user-editing-task"
	EventUserStoppedEditing = "user-stopped-editing-task"
)
