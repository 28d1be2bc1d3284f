// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlab/boardsync/pkg/extensions"
	"github.com/kanbanlab/boardsync/services/board/coordinator"
	"github.com/kanbanlab/boardsync/services/board/realtime"
	"github.com/kanbanlab/boardsync/services/board/routes"
	"github.com/kanbanlab/boardsync/services/board/storage/badger"
	"github.com/kanbanlab/boardsync/services/board/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	hub    *realtime.Hub
}

// newTestServer builds the full stack on an in-memory database with the
// nop auth provider; every request runs as local-user.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users, err := store.NewUserDirectory(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })

	hub := realtime.NewHub(nil, nil)
	coord := coordinator.New(coordinator.Config{
		Tasks:      store.NewTaskStore(db),
		Activities: store.NewActivityStore(db),
		Users:      users,
		Bus:        hub,
		Session:    "board",
	})

	router := gin.New()
	routes.SetupRoutes(router, routes.Deps{
		Coordinator: coord,
		Hub:         hub,
		Users:       users,
		Auth:        &extensions.NopAuthProvider{},
		Session:     "board",
	})
	return &testServer{router: router, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var parsed map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed), "body: %s", w.Body.String())
	}
	return w, parsed
}

func (s *testServer) createTask(t *testing.T, title string) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/v1/tasks", gin.H{"title": title})
	require.Equal(t, http.StatusCreated, w.Code, "body: %v", body)
	task := body["task"].(map[string]any)
	return task["id"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "boardsync", body["service"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTask(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodPost, "/v1/tasks", gin.H{
		"title":    "Write the changelog",
		"priority": "high",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])

	task := body["task"].(map[string]any)
	assert.Equal(t, "Write the changelog", task["title"])
	assert.Equal(t, "high", task["priority"])
	assert.Equal(t, "todo", task["status"])
	assert.Equal(t, float64(1), task["version"])
}

func TestCreateTask_ValidationFailures(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing title", gin.H{}},
		{"reserved title", gin.H{"title": "In Progress"}},
		{"bad status", gin.H{"title": "ok", "status": "archived"}},
		{"bad priority", gin.H{"title": "ok", "priority": "urgent"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, "/v1/tasks", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestCreateTask_DuplicateTitle(t *testing.T) {
	s := newTestServer(t)
	s.createTask(t, "Only one of these")

	w, _ := s.do(t, http.MethodPost, "/v1/tasks", gin.H{"title": "Only one of these"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/v1/tasks/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "task not found", body["error"])
}

func TestListTasks(t *testing.T) {
	s := newTestServer(t)
	s.createTask(t, "first")
	s.createTask(t, "second")

	w, body := s.do(t, http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := body["tasks"].([]any)
	assert.Len(t, tasks, 2)
}

// A stale update returns 409 carrying both versions of the record.
func TestUpdateTask_ConflictResponse(t *testing.T) {
	s := newTestServer(t)
	id := s.createTask(t, "Contended")

	w, _ := s.do(t, http.MethodPut, "/v1/tasks/"+id, gin.H{
		"description": "first writer",
		"version":     1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodPut, "/v1/tasks/"+id, gin.H{
		"description": "second writer",
		"version":     1,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, true, body["conflict"])
	assert.Equal(t, "Conflict detected", body["error"])
	assert.Equal(t, id, body["taskId"])
	assert.Equal(t, "Contended", body["taskTitle"])

	current := body["currentVersion"].(map[string]any)
	assert.Equal(t, float64(2), current["version"])
	assert.Equal(t, "first writer", current["description"])

	incoming := body["incomingVersion"].(map[string]any)
	assert.Equal(t, "second writer", incoming["description"])
	assert.Equal(t, "Local User", body["user1"])
	assert.Equal(t, "Local User", body["user2"])
}

func TestUpdateTask_ThenResolveConflict(t *testing.T) {
	s := newTestServer(t)
	id := s.createTask(t, "Disputed")

	w, _ := s.do(t, http.MethodPut, "/v1/tasks/"+id, gin.H{
		"description": "stored text", "version": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, conflictBody := s.do(t, http.MethodPut, "/v1/tasks/"+id, gin.H{
		"description": "incoming text", "priority": "high", "version": 1,
	})
	require.Equal(t, http.StatusConflict, w.Code)

	current := conflictBody["currentVersion"].(map[string]any)
	incoming := map[string]any{}
	for k, v := range current {
		incoming[k] = v
	}
	incoming["description"] = "incoming text"
	incoming["priority"] = "high"

	w, body := s.do(t, http.MethodPost, "/v1/tasks/"+id+"/resolve-conflict", gin.H{
		"resolution":      "merge",
		"currentVersion":  current,
		"incomingVersion": incoming,
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %v", body)
	task := body["task"].(map[string]any)
	assert.Equal(t, "incoming text", task["description"])
	assert.Equal(t, "high", task["priority"])
	assert.Equal(t, float64(3), task["version"])
}

func TestDeleteTask(t *testing.T) {
	s := newTestServer(t)
	id := s.createTask(t, "Short-lived")

	w, body := s.do(t, http.MethodDelete, "/v1/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	task := body["task"].(map[string]any)
	assert.Equal(t, id, task["id"])

	w, _ = s.do(t, http.MethodGet, "/v1/tasks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkUpdate(t *testing.T) {
	s := newTestServer(t)
	ids := []string{s.createTask(t, "b1"), s.createTask(t, "b2"), s.createTask(t, "b3")}

	w, body := s.do(t, http.MethodPost, "/v1/tasks/bulk-update", gin.H{
		"taskIds": ids,
		"updates": gin.H{"status": "done"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["updatedCount"])
	for _, raw := range body["tasks"].([]any) {
		task := raw.(map[string]any)
		assert.Equal(t, "done", task["status"])
	}
}

func TestSmartAssign_AssignsLocalUser(t *testing.T) {
	s := newTestServer(t)
	// The create request records local-user in the directory.
	id := s.createTask(t, "Needs owner")

	w, body := s.do(t, http.MethodPost, "/v1/tasks/"+id+"/smart-assign", nil)
	require.Equal(t, http.StatusOK, w.Code)
	task := body["task"].(map[string]any)
	assignee := task["assignedTo"].(map[string]any)
	assert.Equal(t, "local-user", assignee["id"])
}

// With nobody in the directory, smart assign is unprocessable.
func TestSmartAssign_NoUsersIs422(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	users, err := store.NewUserDirectory(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })

	coord := coordinator.New(coordinator.Config{
		Tasks:      store.NewTaskStore(db),
		Activities: store.NewActivityStore(db),
		Users:      users,
		Session:    "board",
	})
	router := gin.New()
	routes.SetupRoutes(router, routes.Deps{
		Coordinator: coord,
		Hub:         realtime.NewHub(nil, nil),
		Users:       nil, // middleware does not record users
		Auth:        &extensions.NopAuthProvider{},
		Session:     "board",
	})
	s := &testServer{router: router}

	id := s.createTask(t, "Orphan")
	w, body := s.do(t, http.MethodPost, "/v1/tasks/"+id+"/smart-assign", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, false, body["success"])
}

func TestReassignEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createTask(t, "Handover")

	w, body := s.do(t, http.MethodPost, "/v1/tasks/"+id+"/reassign", gin.H{
		"assignedTo": "local-user",
	})
	require.Equal(t, http.StatusOK, w.Code)
	task := body["task"].(map[string]any)
	assert.Equal(t, "local-user", task["assignedTo"].(map[string]any)["id"])
}

func TestTaskHistory(t *testing.T) {
	s := newTestServer(t)
	id := s.createTask(t, "Tracked")
	w, _ := s.do(t, http.MethodPut, "/v1/tasks/"+id, gin.H{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodGet, "/v1/tasks/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := body["history"].([]any)
	require.Len(t, history, 2)

	newest := history[0].(map[string]any)
	assert.Equal(t, "moved", newest["action"])
	assert.Equal(t, "Moved from todo to done", newest["details"])
}

func TestActivitiesFeedPagination(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		s.createTask(t, fmt.Sprintf("task-%d", i))
	}

	w, body := s.do(t, http.MethodGet, "/v1/activities?limit=2&page=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["activities"].([]any), 2)

	p := body["pagination"].(map[string]any)
	assert.Equal(t, float64(5), p["total"])
	assert.Equal(t, true, p["hasNext"])
	assert.Equal(t, false, p["hasPrev"])

	w, body = s.do(t, http.MethodGet, "/v1/activities?limit=2&page=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["activities"].([]any), 1)
	p = body["pagination"].(map[string]any)
	assert.Equal(t, false, p["hasNext"])
	assert.Equal(t, true, p["hasPrev"])
}

func TestTaskActivitiesEndpoint(t *testing.T) {
	s := newTestServer(t)
	id := s.createTask(t, "Audited")

	w, body := s.do(t, http.MethodGet, "/v1/activities/task/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	activities := body["activities"].([]any)
	require.Len(t, activities, 1)
	assert.Equal(t, "created", activities[0].(map[string]any)["action"])
}

func TestCleanupActivities(t *testing.T) {
	s := newTestServer(t)
	s.createTask(t, "Fresh")

	w, body := s.do(t, http.MethodDelete, "/v1/activities/cleanup?days=30", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["deletedCount"])
}

func TestUsersEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.createTask(t, "Any request records the user")

	w, body := s.do(t, http.MethodGet, "/v1/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "local-user", users[0].(map[string]any)["id"])

	w, body = s.do(t, http.MethodGet, "/v1/users/local-user", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Local User", body["user"].(map[string]any)["name"])

	w, _ = s.do(t, http.MethodGet, "/v1/users/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTask_EmptyBodyRejected(t *testing.T) {
	s := newTestServer(t)
	id := s.createTask(t, "Task")

	w, _ := s.do(t, http.MethodPut, "/v1/tasks/"+id, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
