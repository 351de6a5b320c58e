// Copyright (c) 2026 PU Connect. All rights reserved.

package session

import (
	"github.com/puconnect/core/internal/identity"
	"github.com/puconnect/core/internal/profile"
)

// # Controller States

// State is the lifecycle phase of the session controller.
type State string

const (
	// StateBooting covers the initial cache read and session query.
	StateBooting State = "booting"

	// StateUnauthenticated means the auth authority reported no session.
	StateUnauthenticated State = "unauthenticated"

	// StateAuthenticating covers an in-flight profile resolution for a
	// freshly established session.
	StateAuthenticating State = "authenticating"

	// StateAuthenticated means an identity is present. The profile may still
	// be absent (logged in with no role information) or synthesized; callers
	// must handle both.
	StateAuthenticated State = "authenticated"

	// StateError means boot itself failed. Individual operation failures set
	// the shared error string without leaving the current state.
	StateError State = "error"
)

// Loading reports whether the controller is in a transitional phase.
func (s State) Loading() bool {
	return s == StateBooting || s == StateAuthenticating
}

// # Exposed Snapshot

// Snapshot is the immutable view of the controller's state handed to callers.
type Snapshot struct {
	State   State              `json:"state"`
	User    *identity.Identity `json:"user,omitempty"`
	Profile *profile.Profile   `json:"profile,omitempty"`
	Loading bool               `json:"loading"`
	Err     string             `json:"error,omitempty"`
}
