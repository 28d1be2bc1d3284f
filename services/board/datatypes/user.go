// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// UserRef is a denormalized reference to a user.
//
// Credential storage lives behind the extensions.AuthProvider seam; the
// board only ever sees id, name, and email. Activity records embed a
// UserRef snapshot rather than a live reference so history stays accurate
// after a user is renamed or removed.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName returns the user's name, falling back to the id.
func (u UserRef) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
