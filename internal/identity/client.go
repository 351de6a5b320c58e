// Copyright (c) 2026 PU Connect. All rights reserved.

package identity

import "context"

// # Auth Authority Contract

// Client defines the boundary contract with the remote auth authority.
//
// Implementations must deliver at least the "session established" (non-nil
// argument) and "session ended" (nil argument) transitions to subscribers.
// The session controller is the primary consumer.
type Client interface {

	/*
		CurrentSession returns the active session, or nil when no session exists.

		Parameters:
		  - context: context.Context

		Returns:
		  - *Session: Active session with its Identity, or nil
		  - error: Connectivity failures (an absent session is not an error)
	*/
	CurrentSession(context context.Context) (*Session, error)

	/*
		SignInWithPassword performs a credential check at the authority.

		Parameters:
		  - context: context.Context
		  - email: string
		  - password: string

		Returns:
		  - *Identity: The authenticated account
		  - *Session: The established session
		  - error: apperr.Unauthorized on bad credentials, or connectivity failures
	*/
	SignInWithPassword(context context.Context, email, password string) (*Identity, *Session, error)

	/*
		SignUp creates a new Identity with the supplied metadata attached.

		Description: Depending on the authority's confirmation policy the
		returned session may be nil even on success (e.g. e-mail confirmation
		pending); callers must handle both shapes.

		Parameters:
		  - context: context.Context
		  - email: string
		  - password: string
		  - metadata: Metadata

		Returns:
		  - *Identity: The created account
		  - *Session: The established session, or nil
		  - error: apperr.Conflict on duplicate registration, or connectivity failures
	*/
	SignUp(context context.Context, email, password string, metadata Metadata) (*Identity, *Session, error)

	/*
		SignOut ends the current session at the authority.

		Parameters:
		  - context: context.Context

		Returns:
		  - error: Revocation or connectivity failures
	*/
	SignOut(context context.Context) error

	/*
		RequestPasswordReset initiates the forgot-password flow.

		Parameters:
		  - context: context.Context
		  - email: string
		  - returnURL: string (where the reset link lands)

		Returns:
		  - error: Delivery or connectivity failures
	*/
	RequestPasswordReset(context context.Context, email, returnURL string) error

	/*
		Subscribe registers an auth-state-change listener.

		Description: The listener receives the new session on "session
		established" and nil on "session ended". Delivery order follows the
		authority's own transition order; listeners must tolerate duplicate
		notifications.

		Parameters:
		  - onChange: func(*Session)

		Returns:
		  - func(): Unsubscribe. Safe to call more than once.
	*/
	Subscribe(onChange func(*Session)) (unsubscribe func())
}
