// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package board

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestService assembles the full service on an in-memory store.
// Metrics stay disabled; the default Prometheus registry is process
// global and would reject a second registration.
func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := New(Config{InMemory: true, EnableMetrics: false}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.(*service).cleanup() })
	return svc
}

func TestNew_AppliesDefaults(t *testing.T) {
	svc := newTestService(t)

	cfg := svc.(*service).config
	assert.Equal(t, 12400, cfg.Port)
	assert.Equal(t, "board", cfg.Session)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestService_EndToEnd(t *testing.T) {
	svc := newTestService(t)
	router := svc.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tasks",
		strings.NewReader(`{"title":"Wired end to end"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Wired end to end")
}

func TestService_SchedulerOnlyWhenConfigured(t *testing.T) {
	svc := newTestService(t)
	assert.Nil(t, svc.(*service).scheduler)
}
