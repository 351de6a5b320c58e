// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package profile implements the application-level user record and its
resolution logic.

A Profile is PU Connect's view of a user: campus attributes, a role, and the
presence signal. Exactly one persisted Profile exists per Identity once
created; the resolver may additionally produce a synthesized, never-persisted
Profile when the store is unreachable.

# Architecture

  - Profile / Role: Domain entities (this file, role.go).
  - Store: Data access contract (store.go) with a pgx implementation
    (store_postgres.go).
  - Resolver: Degrading read path that may create a row as a documented side
    effect (resolver.go).
*/
package profile

import (
	"time"

	"github.com/puconnect/core/internal/identity"
)

// # Domain Entities

// Profile represents a registered member of the PU Connect community.
//
// ID is immutable after creation and always equals the owning Identity's ID.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	StudentID  string    `json:"student_id,omitempty"`
	Department string    `json:"department,omitempty"`
	Faculty    string    `json:"faculty,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Role       Role      `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsOnline   bool      `json:"is_online"`
	LastSeen   time.Time `json:"last_seen"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Synthesized marks an in-memory fallback profile that does not exist in
	// the store. It is never serialized; downstream code that must not trust
	// an unpersisted role checks this flag.
	Synthesized bool `json:"-"`
}

// NewFromIdentity seeds a persistable buyer profile from identity metadata.
// This is the row shape the resolver inserts on its self-healing path and
// the controller inserts during registration.
func NewFromIdentity(id *identity.Identity, now time.Time) *Profile {
	return &Profile{
		ID:         id.ID,
		Email:      id.Email,
		FullName:   id.Metadata.FullName,
		StudentID:  id.Metadata.StudentID,
		Department: id.Metadata.Department,
		Faculty:    id.Metadata.Faculty,
		Phone:      id.Metadata.Phone,
		Role:       RoleBuyer,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Synthesize builds the in-memory-only fallback profile for an identity whose
// persisted row could not be read or created. All fields default to the empty
// string except FullName, which falls back to the literal "User".
func Synthesize(id *identity.Identity, now time.Time) *Profile {
	fullName := id.Metadata.FullName
	if fullName == "" {
		fullName = "User"
	}

	return &Profile{
		ID:          id.ID,
		Email:       id.Email,
		FullName:    fullName,
		StudentID:   id.Metadata.StudentID,
		Department:  id.Metadata.Department,
		Faculty:     id.Metadata.Faculty,
		Phone:       id.Metadata.Phone,
		Role:        RoleBuyer,
		IsActive:    true,
		IsOnline:    true,
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
		Synthesized: true,
	}
}
