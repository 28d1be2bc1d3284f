// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanbanlab/boardsync/pkg/extensions"
	"github.com/kanbanlab/boardsync/services/board/storage/badger"
	"github.com/kanbanlab/boardsync/services/board/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// failingProvider rejects every token.
type failingProvider struct{}

func (failingProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	return nil, extensions.ErrUnauthorized
}

// staticProvider returns a fixed identity.
type staticProvider struct {
	info extensions.AuthInfo
}

func (p staticProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	info := p.info
	return &info, nil
}

func newDirectory(t *testing.T) *store.UserDirectory {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	d, err := store.NewUserDirectory(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestAuth_NopProviderAuthenticatesEveryRequest(t *testing.T) {
	r := gin.New()
	r.Use(Auth(&extensions.NopAuthProvider{}, nil))
	r.GET("/whoami", func(c *gin.Context) {
		actor, ok := Actor(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user": actor.ID})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "local-user")
}

func TestAuth_RejectionAborts(t *testing.T) {
	r := gin.New()
	r.Use(Auth(failingProvider{}, nil))
	handlerRan := false
	r.GET("/whoami", func(c *gin.Context) { handlerRan = true })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, handlerRan)
}

func TestAuth_RecordsUserInDirectory(t *testing.T) {
	users := newDirectory(t)
	provider := staticProvider{info: extensions.AuthInfo{
		UserID: "u42", Name: "Grace", Email: "grace@example.com",
	}}

	r := gin.New()
	r.Use(Auth(provider, users))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusOK, w.Code)

	got, err := users.Get(context.Background(), "u42")
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.Name)
	assert.Equal(t, "grace@example.com", got.Email)
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", ""},
		{"standard bearer", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer XYZ", "XYZ"},
		{"wrong scheme", "Basic dXNlcg==", ""},
		{"no token", "Bearer", ""},
		{"padded token", "Bearer   spaced  ", "spaced"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.want, extractBearerToken(c))
		})
	}
}

func TestActor_WithoutAuthInfo(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := Actor(c)
	assert.False(t, ok)
}
