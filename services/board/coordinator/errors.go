// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coordinator

import (
	"errors"
	"fmt"

	"github.com/kanbanlab/boardsync/services/board/datatypes"
)

// ErrNoUsers is returned by smart assignment when the user directory is
// empty; there is nobody to assign to.
var ErrNoUsers = errors.New("no users available for assignment")

// ValidationError marks input that binding-level validation could not
// catch (semantic rules like title uniqueness). The HTTP layer maps it
// to 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// validationf builds a ValidationError from a format string.
func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is returned when the version guard rejects an update.
// It carries the full conflict envelope so callers can surface both
// snapshots without a second read. The HTTP layer maps it to 409.
type ConflictError struct {
	Envelope datatypes.ConflictEnvelope
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s: version conflict (stored v%d)",
		e.Envelope.TaskID, e.Envelope.CurrentVersion.Version)
}
