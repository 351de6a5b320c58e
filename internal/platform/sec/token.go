// Copyright (c) 2026 PU Connect. All rights reserved.

package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the subset of a GoTrue-style access token the client cares
// about. The auth authority owns signature verification; this core only reads
// the expiry to schedule token refresh and the subject for sanity checks.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// PeekAccessToken decodes an access token WITHOUT verifying its signature.
//
// # Why unverified?
//
// The token was just handed to us by the auth authority over TLS, and every
// privileged operation re-presents it to that same authority, which verifies
// it server-side. The client only needs the expiry timestamp to know when to
// refresh.
func PeekAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("sec: malformed access token: %w", err)
	}

	return claims, nil
}

// ExpiresAtTime returns the token expiry, or the zero time when the claim is absent.
func (c *AccessClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
