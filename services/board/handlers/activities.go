// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kanbanlab/boardsync/services/board/coordinator"
	"github.com/kanbanlab/boardsync/services/board/datatypes"
)

// DefaultRetentionDays is how far back the cleanup endpoint keeps
// activity entries when no explicit age is given.
const DefaultRetentionDays = 30

// intQuery parses an integer query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// HandleListActivities returns one page of the board-wide activity
// feed, newest first. Query: limit (default 20), page (1-based).
func HandleListActivities(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 20)
		if limit <= 0 {
			limit = 20
		}
		page := intQuery(c, "page", 1)
		if page < 1 {
			page = 1
		}
		offset := (page - 1) * limit

		activities, total, err := co.RecentActivities(c.Request.Context(), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		if activities == nil {
			activities = []*datatypes.Activity{}
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"activities": activities,
			"pagination": gin.H{
				"page":    page,
				"limit":   limit,
				"total":   total,
				"hasNext": offset+len(activities) < total,
				"hasPrev": page > 1,
			},
		})
	}
}

// HandleTaskActivities returns the activity entries of one task,
// newest first.
func HandleTaskActivities(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 0)
		activities, err := co.History(c.Request.Context(), c.Param("taskId"), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		if activities == nil {
			activities = []*datatypes.Activity{}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "activities": activities})
	}
}

// HandleCleanupActivities deletes activity entries older than the given
// number of days (query "days", default 30) and reports the count.
func HandleCleanupActivities(co *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		days := intQuery(c, "days", DefaultRetentionDays)
		if days < 1 {
			days = DefaultRetentionDays
		}
		n, err := co.PurgeActivities(c.Request.Context(), days)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"deletedCount": n,
		})
	}
}
