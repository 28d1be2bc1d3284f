// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the board service's HTTP surface: gin
// handlers that translate requests into coordinator calls and map the
// coordinator's error taxonomy onto status codes.
//
// Status mapping:
//
//	ValidationError  -> 400
//	ErrTaskNotFound  -> 404
//	ErrUserNotFound  -> 404
//	ConflictError    -> 409 (body carries both snapshots)
//	ErrNoUsers       -> 422
//	anything else    -> 500 (generic body, detail only in the log)
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kanbanlab/boardsync/services/board/coordinator"
	"github.com/kanbanlab/boardsync/services/board/store"
)

// respondError maps err to a status code and writes the JSON error
// body. 409 responses carry the conflict envelope so the client can
// offer resolution without another fetch.
func respondError(c *gin.Context, err error) {
	var ve *coordinator.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   ve.Reason,
		})
		return
	}

	var ce *coordinator.ConflictError
	if errors.As(err, &ce) {
		c.JSON(http.StatusConflict, gin.H{
			"success":         false,
			"error":           "Conflict detected",
			"conflict":        true,
			"taskId":          ce.Envelope.TaskID,
			"taskTitle":       ce.Envelope.TaskTitle,
			"currentVersion":  ce.Envelope.CurrentVersion,
			"incomingVersion": ce.Envelope.IncomingVersion,
			"user1":           ce.Envelope.User1,
			"user2":           ce.Envelope.User2,
		})
		return
	}

	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "task not found",
		})
	case errors.Is(err, store.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "user not found",
		})
	case errors.Is(err, coordinator.ErrNoUsers):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "no users available for assignment",
		})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal server error",
		})
	}
}

// respondBindError writes a 400 for a request-body binding failure.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
