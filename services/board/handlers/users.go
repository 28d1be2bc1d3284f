// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kanbanlab/boardsync/services/board/coordinator"
	"github.com/kanbanlab/boardsync/services/board/datatypes"
)

// HandleListUsers returns everyone who has used the board, in the
// order they first appeared.
func HandleListUsers(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := co.Users(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if users == nil {
			users = []datatypes.UserRef{}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
	}
}

// HandleGetUser returns one directory entry by id.
func HandleGetUser(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := co.User(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
	}
}
