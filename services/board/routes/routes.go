// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the board service's HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kanbanlab/boardsync/pkg/extensions"
	"github.com/kanbanlab/boardsync/services/board/coordinator"
	"github.com/kanbanlab/boardsync/services/board/handlers"
	"github.com/kanbanlab/boardsync/services/board/middleware"
	"github.com/kanbanlab/boardsync/services/board/realtime"
	"github.com/kanbanlab/boardsync/services/board/store"
)

// Deps carries everything the route table needs.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Hub         *realtime.Hub
	Users       *store.UserDirectory
	Auth        extensions.AuthProvider

	// Session is the board session websocket clients join.
	Session string
}

// SetupRoutes registers all board endpoints.
//
// Endpoints:
//
//	GET    /health
//	GET    /metrics
//
//	GET    /v1/board/ws                        (auth in-band, first message)
//
//	GET    /v1/tasks
//	POST   /v1/tasks
//	GET    /v1/tasks/:id
//	PUT    /v1/tasks/:id
//	DELETE /v1/tasks/:id
//	POST   /v1/tasks/bulk-update
//	POST   /v1/tasks/:id/smart-assign
//	POST   /v1/tasks/:id/reassign
//	POST   /v1/tasks/:id/resolve-conflict
//	GET    /v1/tasks/:id/history
//
//	GET    /v1/activities
//	GET    /v1/activities/task/:taskId
//	DELETE /v1/activities/cleanup
//
//	GET    /v1/users
//	GET    /v1/users/:id
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The websocket endpoint sits outside the auth middleware; browsers
	// cannot set Authorization headers on websocket dials, so the token
	// arrives in the first message instead.
	router.GET("/v1/board/ws", handlers.HandleBoardWebSocket(deps.Hub, deps.Auth, deps.Session))

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(deps.Auth, deps.Users))
	{
		tasks := v1.Group("/tasks")
		{
			tasks.GET("", handlers.HandleListTasks(deps.Coordinator))
			tasks.POST("", handlers.HandleCreateTask(deps.Coordinator))
			tasks.POST("/bulk-update", handlers.HandleBulkUpdate(deps.Coordinator))
			tasks.GET("/:id", handlers.HandleGetTask(deps.Coordinator))
			tasks.PUT("/:id", handlers.HandleUpdateTask(deps.Coordinator))
			tasks.DELETE("/:id", handlers.HandleDeleteTask(deps.Coordinator))
			tasks.POST("/:id/smart-assign", handlers.HandleSmartAssign(deps.Coordinator))
			tasks.POST("/:id/reassign", handlers.HandleReassign(deps.Coordinator))
			tasks.POST("/:id/resolve-conflict", handlers.HandleResolveConflict(deps.Coordinator))
			tasks.GET("/:id/history", handlers.HandleTaskHistory(deps.Coordinator))
		}

		activities := v1.Group("/activities")
		{
			activities.GET("", handlers.HandleListActivities(deps.Coordinator))
			activities.GET("/task/:taskId", handlers.HandleTaskActivities(deps.Coordinator))
			activities.DELETE("/cleanup", handlers.HandleCleanupActivities(deps.Coordinator))
		}

		users := v1.Group("/users")
		{
			users.GET("", handlers.HandleListUsers(deps.Coordinator))
			users.GET("/:id", handlers.HandleGetUser(deps.Coordinator))
		}
	}
}
