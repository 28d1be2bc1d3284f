// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when authentication fails.
// Hosted implementations should wrap this error with additional context:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication. Task mutations are attributed to this identity, so
// Name and Email should be populated whenever the provider knows them;
// they are denormalized into activity records.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Name is the user's display name, shown on task cards and in the
	// activity feed. Falls back to UserID when empty.
	Name string

	// Email is the user's email address. May be empty.
	Email string

	// Roles contains the user's role memberships.
	// Common roles: "admin", "member", "viewer"
	Roles []string
}

// HasRole checks if the user has a specific role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Local Behavior
//
// The default NopAuthProvider always returns a valid "local-user" with
// admin privileges, so the service functions without any authentication
// infrastructure.
//
// # Hosted Implementation
//
// Hosted deployments implement this interface to validate tokens against
// identity providers (JWT sessions, Okta, Auth0, etc.):
//
//	func (p *JWTProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
//	    claims, err := p.verify(token)
//	    if err != nil {
//	        return nil, fmt.Errorf("jwt validation failed: %w", ErrUnauthorized)
//	    }
//	    return &AuthInfo{UserID: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
//	}
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's identity.
	// Returns ErrUnauthorized (possibly wrapped) when the token is invalid.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider is the default provider for local deployments.
// Every request, including those with an empty token, authenticates
// as the same local user.
type NopAuthProvider struct{}

// Validate always succeeds and returns the local user identity.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Name:   "Local User",
		Email:  "local-user@boardsync.local",
		Roles:  []string{"admin"},
	}, nil
}
