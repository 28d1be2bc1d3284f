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
	"github.com/kanbanlab/boardsync/services/board/middleware"
)

// actor pulls the authenticated user from the request or aborts 401.
func actor(c *gin.Context) (datatypes.UserRef, bool) {
	u, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "not authenticated",
		})
	}
	return u, ok
}

// HandleListTasks returns every task, newest first.
func HandleListTasks(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := co.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if tasks == nil {
			tasks = []*datatypes.Task{}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "tasks": tasks})
	}
}

// HandleGetTask returns one task by id.
func HandleGetTask(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := co.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
	}
}

// HandleCreateTask creates a task from the request body.
func HandleCreateTask(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := actor(c)
		if !ok {
			return
		}
		var req datatypes.CreateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		task, err := co.Create(c.Request.Context(), user, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "task": task})
	}
}

// HandleUpdateTask applies a partial update under the version guard.
// A stale version yields 409 with the conflict envelope in the body.
func HandleUpdateTask(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := actor(c)
		if !ok {
			return
		}
		var req datatypes.UpdateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		task, err := co.Update(c.Request.Context(), user, c.Param("id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
	}
}

// HandleDeleteTask removes a task and returns the deleted record.
func HandleDeleteTask(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := actor(c)
		if !ok {
			return
		}
		task, err := co.Delete(c.Request.Context(), user, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
	}
}

// HandleBulkUpdate applies the same partial update to a set of tasks.
func HandleBulkUpdate(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := actor(c)
		if !ok {
			return
		}
		var req datatypes.BulkUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		tasks, err := co.BulkUpdate(c.Request.Context(), user, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"tasks":        tasks,
			"updatedCount": len(tasks),
		})
	}
}

// HandleSmartAssign assigns the task to the least-loaded user.
func HandleSmartAssign(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := actor(c)
		if !ok {
			return
		}
		task, err := co.SmartAssign(c.Request.Context(), user, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
	}
}

// HandleReassign changes a task's assignee.
func HandleReassign(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := actor(c)
		if !ok {
			return
		}
		var req datatypes.ReassignTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		task, err := co.Reassign(c.Request.Context(), user, c.Param("id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
	}
}

// HandleResolveConflict applies a chosen resolution strategy to a
// previously broadcast conflict.
func HandleResolveConflict(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := actor(c)
		if !ok {
			return
		}
		var req datatypes.ResolveConflictRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		task, err := co.ResolveConflict(c.Request.Context(), user, c.Param("id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
	}
}

// HandleTaskHistory returns a task's activity entries, newest first,
// capped at 50.
func HandleTaskHistory(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 0)
		history, err := co.History(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		if history == nil {
			history = []*datatypes.Activity{}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
	}
}
