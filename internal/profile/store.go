// Copyright (c) 2026 PU Connect. All rights reserved.

package profile

import (
	"context"
	"time"
)

// # Profile Data Access

// Store defines the data access contract for persisted profiles.
//
// Implementations classify failures through the dberr taxonomy: a missing row
// is [dberr.ErrNotFound], a unique-constraint violation is
// [dberr.ErrDuplicateKey], and anything else is an I/O failure. The resolver
// depends on that distinction.
type Store interface {

	/*
		GetByID returns the profile with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Profile: Hydrated entity
		  - error: dberr.ErrNotFound, or I/O failures
	*/
	GetByID(context context.Context, id string) (*Profile, error)

	/*
		FindByEmail returns the profile with the given unique email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Profile: Hydrated entity
		  - error: dberr.ErrNotFound, or I/O failures
	*/
	FindByEmail(context context.Context, email string) (*Profile, error)

	/*
		Insert persists a brand-new profile row.

		Parameters:
		  - context: context.Context
		  - profile: *Profile

		Returns:
		  - *Profile: The inserted row as stored
		  - error: dberr.ErrDuplicateKey when the row already exists, or I/O failures
	*/
	Insert(context context.Context, profile *Profile) (*Profile, error)

	/*
		SetPresence atomically updates the online flag and last-seen timestamp.

		Parameters:
		  - context: context.Context
		  - id: string
		  - online: bool
		  - at: time.Time

		Returns:
		  - error: I/O failures (a missing row is also reported as dberr.ErrNotFound)
	*/
	SetPresence(context context.Context, id string, online bool, at time.Time) error

	/*
		UpdateRole replaces the role of an existing profile.

		Parameters:
		  - context: context.Context
		  - id: string
		  - role: Role

		Returns:
		  - error: dberr.ErrNotFound, or I/O failures
	*/
	UpdateRole(context context.Context, id string, role Role) error
}
