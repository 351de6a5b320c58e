// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package profiletest provides an in-memory [profile.Store] for tests.

The fake honors the dberr classification contract the resolver depends on:
missing rows return [dberr.ErrNotFound] and duplicate inserts return
[dberr.ErrDuplicateKey]. Arbitrary I/O failures are injectable per operation
via the Fail* fields, and every presence write is recorded for assertion.
*/
package profiletest

import (
	"context"
	"sync"
	"time"

	"github.com/puconnect/core/internal/platform/dberr"
	"github.com/puconnect/core/internal/profile"
)

// PresenceWrite records one SetPresence call for later assertion.
type PresenceWrite struct {
	ID     string
	Online bool
	At     time.Time
}

// Store is an in-memory [profile.Store].
//
// # Concurrency
//
// All methods are safe for concurrent use.
type Store struct {
	mutex    sync.Mutex
	rows     map[string]profile.Profile // keyed by id
	presence []PresenceWrite

	// FailGet, when non-nil, is returned by GetByID and FindByEmail.
	FailGet error
	// FailInsert, when non-nil, is returned by Insert.
	FailInsert error
	// FailSetPresence, when non-nil, is returned by SetPresence. The write is
	// still recorded so tests can assert the attempt happened.
	FailSetPresence error

	// InsertDelay, when set, is slept before Insert takes effect. Used to
	// widen race windows in concurrency tests.
	InsertDelay time.Duration

	// GetDelay, when set, is slept before GetByID takes effect. Used to hold
	// a resolution in flight while a newer transition lands.
	GetDelay time.Duration

	// Inserts counts Insert attempts, including failed ones.
	Inserts int
}

// NewStore constructs an empty fake [Store].
func NewStore() *Store {
	return &Store{rows: make(map[string]profile.Profile)}
}

// Seed places a row directly into the store.
func (store *Store) Seed(row *profile.Profile) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.rows[row.ID] = *row
}

// PresenceWrites returns a copy of the recorded presence writes.
func (store *Store) PresenceWrites() []PresenceWrite {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	writes := make([]PresenceWrite, len(store.presence))
	copy(writes, store.presence)
	return writes
}

// # profile.Store

// GetByID returns the stored row or dberr.ErrNotFound.
func (store *Store) GetByID(_ context.Context, id string) (*profile.Profile, error) {
	if store.GetDelay > 0 {
		time.Sleep(store.GetDelay)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.FailGet != nil {
		return nil, store.FailGet
	}
	row, ok := store.rows[id]
	if !ok {
		return nil, dberr.ErrNotFound
	}
	return &row, nil
}

// FindByEmail scans for the row with the given email.
func (store *Store) FindByEmail(_ context.Context, email string) (*profile.Profile, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.FailGet != nil {
		return nil, store.FailGet
	}
	for _, row := range store.rows {
		if row.Email == email {
			found := row
			return &found, nil
		}
	}
	return nil, dberr.ErrNotFound
}

// Insert stores a new row or returns dberr.ErrDuplicateKey.
func (store *Store) Insert(_ context.Context, row *profile.Profile) (*profile.Profile, error) {
	if store.InsertDelay > 0 {
		time.Sleep(store.InsertDelay)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.Inserts++
	if store.FailInsert != nil {
		return nil, store.FailInsert
	}
	if _, exists := store.rows[row.ID]; exists {
		return nil, dberr.ErrDuplicateKey
	}

	stored := *row
	store.rows[row.ID] = stored
	return &stored, nil
}

// SetPresence records the write and updates the row when present.
func (store *Store) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.presence = append(store.presence, PresenceWrite{ID: id, Online: online, At: at})
	if store.FailSetPresence != nil {
		return store.FailSetPresence
	}

	row, ok := store.rows[id]
	if !ok {
		return dberr.ErrNotFound
	}
	row.IsOnline = online
	row.LastSeen = at
	store.rows[id] = row
	return nil
}

// UpdateRole replaces the role of an existing row.
func (store *Store) UpdateRole(_ context.Context, id string, role profile.Role) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	row, ok := store.rows[id]
	if !ok {
		return dberr.ErrNotFound
	}
	row.Role = role
	store.rows[id] = row
	return nil
}
