// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package identitytest provides an in-memory [identity.Client] for tests.

The fake mirrors the remote authority's observable contract closely enough
for the session controller's tests: password hashes are real bcrypt hashes,
identity IDs are real UUIDv7 strings, and auth-state notifications are
delivered synchronously on the mutating goroutine — the same re-entrancy the
production HTTP client exhibits.

Failure injection is scriptable per operation via the Fail* fields.
*/
package identitytest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/puconnect/core/internal/identity"
	"github.com/puconnect/core/internal/platform/apperr"
	"github.com/puconnect/core/internal/platform/sec"
)

// account is one registered identity with its credential.
type account struct {
	identity     identity.Identity
	passwordHash string
}

// FakeClient is an in-memory [identity.Client].
//
// # Concurrency
//
// All methods are safe for concurrent use. Notifications fire synchronously
// while no internal lock is held.
type FakeClient struct {
	mutex       sync.Mutex
	accounts    map[string]*account // keyed by email
	session     *identity.Session
	subscribers map[int]func(*identity.Session)
	nextSubID   int

	// FailCurrentSession, when non-nil, is returned by CurrentSession.
	FailCurrentSession error
	// FailSignIn, when non-nil, is returned by SignInWithPassword.
	FailSignIn error
	// FailSignUp, when non-nil, is returned by SignUp.
	FailSignUp error
	// FailSignOut, when non-nil, is returned by SignOut. The local session is
	// still cleared, matching the production client's clear-even-on-failure
	// behavior.
	FailSignOut error
}

// NewFakeClient constructs an empty [FakeClient] with no session.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		accounts:    make(map[string]*account),
		subscribers: make(map[int]func(*identity.Session)),
	}
}

// # Seeding

// Seed registers an account without notifying subscribers or signing in.
// It returns the assigned identity ID.
func (client *FakeClient) Seed(email, password string, metadata identity.Metadata) string {
	hash, err := sec.HashPassword(password)
	if err != nil {
		panic(err)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	id := uuid.Must(uuid.NewV7()).String()
	client.accounts[email] = &account{
		identity: identity.Identity{
			ID:       id,
			Email:    email,
			Metadata: metadata,
		},
		passwordHash: hash,
	}
	return id
}

// SetSession forces the current session and notifies subscribers, simulating
// a transition originating at the authority (e.g. a refresh on another
// device). Pass nil to simulate remote revocation.
func (client *FakeClient) SetSession(session *identity.Session) {
	client.mutex.Lock()
	client.session = session
	listeners := client.listenersLocked()
	client.mutex.Unlock()

	for _, notify := range listeners {
		notify(session)
	}
}

// # identity.Client

// CurrentSession returns the active session, or nil when signed out.
func (client *FakeClient) CurrentSession(context.Context) (*identity.Session, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	if client.FailCurrentSession != nil {
		return nil, client.FailCurrentSession
	}
	return client.session, nil
}

// SignInWithPassword checks the credential and establishes a session.
func (client *FakeClient) SignInWithPassword(_ context.Context, email, password string) (*identity.Identity, *identity.Session, error) {
	client.mutex.Lock()

	if client.FailSignIn != nil {
		err := client.FailSignIn
		client.mutex.Unlock()
		return nil, nil, err
	}

	registered, ok := client.accounts[email]
	if !ok || !sec.CheckPasswordHash(password, registered.passwordHash) {
		client.mutex.Unlock()
		return nil, nil, apperr.Unauthorized("Invalid login credentials")
	}

	user := registered.identity
	session := client.establishLocked(&user)
	listeners := client.listenersLocked()
	client.mutex.Unlock()

	for _, notify := range listeners {
		notify(session)
	}
	return &user, session, nil
}

// SignUp registers the account and establishes a session immediately,
// matching an authority configured without email confirmation.
func (client *FakeClient) SignUp(_ context.Context, email, password string, metadata identity.Metadata) (*identity.Identity, *identity.Session, error) {
	client.mutex.Lock()

	if client.FailSignUp != nil {
		err := client.FailSignUp
		client.mutex.Unlock()
		return nil, nil, err
	}
	if _, exists := client.accounts[email]; exists {
		client.mutex.Unlock()
		return nil, nil, apperr.Conflict("User already registered")
	}

	hash, err := sec.HashPassword(password)
	if err != nil {
		client.mutex.Unlock()
		return nil, nil, apperr.Internal(err)
	}

	registered := &account{
		identity: identity.Identity{
			ID:       uuid.Must(uuid.NewV7()).String(),
			Email:    email,
			Metadata: metadata,
		},
		passwordHash: hash,
	}
	client.accounts[email] = registered

	user := registered.identity
	session := client.establishLocked(&user)
	listeners := client.listenersLocked()
	client.mutex.Unlock()

	for _, notify := range listeners {
		notify(session)
	}
	return &user, session, nil
}

// SignOut clears the session. The local session is cleared and subscribers
// are notified even when FailSignOut is set.
func (client *FakeClient) SignOut(context.Context) error {
	client.mutex.Lock()
	err := client.FailSignOut
	client.session = nil
	listeners := client.listenersLocked()
	client.mutex.Unlock()

	for _, notify := range listeners {
		notify(nil)
	}
	return err
}

// RequestPasswordReset is a no-op for the fake.
func (client *FakeClient) RequestPasswordReset(_ context.Context, email, _ string) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	if _, ok := client.accounts[email]; !ok {
		return apperr.NotFound("User")
	}
	return nil
}

// Subscribe registers an auth-state listener.
func (client *FakeClient) Subscribe(onChange func(*identity.Session)) (unsubscribe func()) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	id := client.nextSubID
	client.nextSubID++
	client.subscribers[id] = onChange

	return func() {
		client.mutex.Lock()
		defer client.mutex.Unlock()
		delete(client.subscribers, id)
	}
}

// # Internal Helpers

// establishLocked builds and installs a session. Callers hold the mutex.
func (client *FakeClient) establishLocked(user *identity.Identity) *identity.Session {
	session := &identity.Session{
		AccessToken:  "test-access-" + user.ID,
		RefreshToken: "test-refresh-" + user.ID,
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         user,
	}
	client.session = session
	return session
}

// listenersLocked snapshots the subscriber set so notifications can fire
// outside the mutex. Callers hold the mutex.
func (client *FakeClient) listenersLocked() []func(*identity.Session) {
	listeners := make([]func(*identity.Session), 0, len(client.subscribers))
	for _, notify := range client.subscribers {
		listeners = append(listeners, notify)
	}
	return listeners
}
