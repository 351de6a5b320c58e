// Copyright (c) 2026 PU Connect. All rights reserved.

// PostgreSQL implementation of the profile store.
//
// # Error Mapping
//
// Storage-specific errors (pgx.ErrNoRows, unique violations) are mapped onto
// the dberr taxonomy so the resolver never sees pgx types.

package profile

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/puconnect/core/internal/platform/dberr"
)

// profileColumns is the canonical SELECT column list, kept in one place so
// every query scans identically.
const profileColumns = `
	id, email, full_name, student_id, department, faculty, phone,
	role, is_active, is_online, last_seen, created_at, updated_at`

// PostgresStore implements the [Store] interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of the [Store].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
GetByID retrieves a profile row by its primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Profile: Hydrated entity
  - error: dberr.ErrNotFound or I/O failures
*/
func (store *PostgresStore) GetByID(context context.Context, id string) (*Profile, error) {
	const query = `
		SELECT` + profileColumns + `
		FROM profiles
		WHERE id = $1`

	return store.scanRow(store.pool.QueryRow(context, query, id))
}

/*
FindByEmail retrieves a profile row by its unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Profile: Hydrated entity
  - error: dberr.ErrNotFound or I/O failures
*/
func (store *PostgresStore) FindByEmail(context context.Context, email string) (*Profile, error) {
	const query = `
		SELECT` + profileColumns + `
		FROM profiles
		WHERE email = $1`

	return store.scanRow(store.pool.QueryRow(context, query, email))
}

/*
Insert persists a new profile row and returns it as stored.

Description: Initializes timestamps when the caller left them zero. A
concurrent insert for the same id surfaces as dberr.ErrDuplicateKey, which
the resolver treats as "someone else already created it".

Parameters:
  - context: context.Context
  - profile: *Profile

Returns:
  - *Profile: The row as persisted (RETURNING clause)
  - error: dberr.ErrDuplicateKey or I/O failures
*/
func (store *PostgresStore) Insert(context context.Context, profile *Profile) (*Profile, error) {
	const query = `
		INSERT INTO profiles (
			id, email, full_name, student_id, department, faculty, phone,
			role, is_active, is_online, last_seen, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING` + profileColumns

	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	if profile.LastSeen.IsZero() {
		profile.LastSeen = now
	}

	return store.scanRow(store.pool.QueryRow(context, query,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.StudentID,
		profile.Department,
		profile.Faculty,
		profile.Phone,
		profile.Role,
		profile.IsActive,
		profile.IsOnline,
		profile.LastSeen,
		profile.CreatedAt,
		profile.UpdatedAt,
	))
}

/*
SetPresence atomically flips the online flag and advances last-seen.

Description: This is the presence reporter's single write. It is idempotent:
repeating the same update for an identity only advances the timestamp.

Parameters:
  - context: context.Context
  - id: string
  - online: bool
  - at: time.Time

Returns:
  - error: dberr.ErrNotFound when no row matches, or I/O failures
*/
func (store *PostgresStore) SetPresence(context context.Context, id string, online bool, at time.Time) error {
	const query = `
		UPDATE profiles
		SET is_online = $2, last_seen = $3, updated_at = $3
		WHERE id = $1`

	tag, err := store.pool.Exec(context, query, id, online, at)
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
UpdateRole replaces the role of an existing profile.

Parameters:
  - context: context.Context
  - id: string
  - role: Role

Returns:
  - error: dberr.ErrNotFound when no row matches, or I/O failures
*/
func (store *PostgresStore) UpdateRole(context context.Context, id string, role Role) error {
	const query = `
		UPDATE profiles
		SET role = $2, updated_at = $3
		WHERE id = $1`

	tag, err := store.pool.Exec(context, query, id, role, time.Now())
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// # Scan Helpers

// rowScanner abstracts pgx.Row so the scan logic is shared across queries.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRow hydrates one profile row, classifying failures via dberr.
func (store *PostgresStore) scanRow(row rowScanner) (*Profile, error) {
	profile := &Profile{}
	err := row.Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.StudentID,
		&profile.Department,
		&profile.Faculty,
		&profile.Phone,
		&profile.Role,
		&profile.IsActive,
		&profile.IsOnline,
		&profile.LastSeen,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return profile, nil
}
