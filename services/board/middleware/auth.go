// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the board service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header, validates it using the configured AuthProvider, and stores the
// resulting AuthInfo in the Gin context for downstream handlers. It then
// upserts the authenticated user into the board's user directory so the
// assignment UI and smart assignment can see everyone who has used the
// board.
//
// # Open Source Behavior
//
// With NopAuthProvider (default) every request authenticates as
// "local-user"; the board works without any identity infrastructure.
// Enterprise deployments plug a real provider in through
// extensions.ServiceOptions.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kanbanlab/boardsync/pkg/extensions"
	"github.com/kanbanlab/boardsync/services/board/datatypes"
	"github.com/kanbanlab/boardsync/services/board/store"
)

// authInfoKey is the context key for storing AuthInfo.
const authInfoKey = "boardsync_auth_info"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated user info in the Gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info from the Gin
// context, or nil when the request was not authenticated.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// Actor converts the request's AuthInfo into the UserRef snapshot that
// mutations and activity entries record. Returns false when the request
// carries no identity.
func Actor(c *gin.Context) (datatypes.UserRef, bool) {
	info := GetAuthInfo(c)
	if info == nil {
		return datatypes.UserRef{}, false
	}
	return datatypes.UserRef{
		ID:    info.UserID,
		Name:  info.Name,
		Email: info.Email,
	}, true
}

// =============================================================================
// Auth Middleware
// =============================================================================

// Auth creates a Gin middleware that authenticates requests.
//
// # Description
//
// Extracts the bearer token from the Authorization header ("Bearer"
// case-insensitive per RFC 7235; a missing or malformed header yields
// an empty token, which NopAuthProvider accepts as local-user),
// validates it with provider, stores the AuthInfo in the context, and
// records the user in the directory.
//
// The directory upsert is best-effort: a storage hiccup must not turn
// into a 500 on every authenticated request.
//
// # Inputs
//
//   - provider: AuthProvider to validate tokens. Must not be nil.
//   - users: directory to record authenticated users in. May be nil.
//
// # Thread Safety
//
// The returned middleware is safe for concurrent use.
func Auth(provider extensions.AuthProvider, users *store.UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetAuthInfo(c, authInfo)

		if users != nil && authInfo != nil {
			u := datatypes.UserRef{
				ID:    authInfo.UserID,
				Name:  authInfo.Name,
				Email: authInfo.Email,
			}
			if err := users.Upsert(c.Request.Context(), u); err != nil {
				slog.Warn("failed to record user in directory",
					"user", authInfo.UserID, "error", err)
			}
		}

		c.Next()
	}
}

// extractBearerToken parses "Authorization: Bearer <token>", returning
// "" when the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
