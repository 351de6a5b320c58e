// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package identity models the external auth authority's view of a user and the
client contract for talking to it.

The auth authority owns credentials, sessions, tokens, and pushes state-change
notifications. Everything in this package is read-only to the session core:
an [Identity] is never mutated locally, only replaced wholesale when the
authority answers.

# Architecture

  - Identity / Session: Wire-level entities owned by the remote authority.
  - Client: The boundary interface the session controller consumes.
  - HTTPClient: GoTrue-compatible REST implementation (http.go).
*/
package identity

import "time"

// # Domain Entities

// Identity is the account record owned by the external auth authority.
type Identity struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Metadata Metadata `json:"user_metadata"`
}

// Metadata is the free-form identity metadata, modelled as an explicit
// optional-field struct so the profile resolver's fallback logic is
// statically checkable. Absent fields decode to the empty string.
type Metadata struct {
	FullName   string `json:"full_name,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
	Department string `json:"department,omitempty"`
	Faculty    string `json:"faculty,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Session is an authenticated session issued by the auth authority.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *Identity `json:"user"`
}

// Expired reports whether the session's access token is past its expiry.
// A zero ExpiresAt means the authority did not communicate one; the session
// is then treated as live until the authority says otherwise.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
