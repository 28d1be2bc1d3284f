// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for pluggable identity functionality.
//
// boardsync is designed as a fully functional local service that works
// without any external identity infrastructure. Hosted deployments provide
// concrete implementations of these interfaces and inject them via
// ServiceOptions.
//
// # Extension Categories
//
//   - auth.go: Authentication (AuthProvider, AuthInfo)
//
// # Usage (local, default)
//
//	opts := extensions.DefaultOptions()
//	routes.SetupRoutes(router, deps, opts)
//
// # Usage (hosted)
//
//	opts := extensions.ServiceOptions{
//	    AuthProvider: hosted.NewJWTProvider(config),
//	}
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to route setup to enable hosted features. All fields are
// optional; nil values are replaced with no-op defaults when
// DefaultOptions() is called.
type ServiceOptions struct {
	// AuthProvider validates authentication tokens.
	// Default: NopAuthProvider (always returns a valid local user)
	AuthProvider AuthProvider
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the local single-user version.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
	}
}
