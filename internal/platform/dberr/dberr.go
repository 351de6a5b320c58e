// Copyright (c) 2026 PU Connect. All rights reserved.

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
//
// The profile resolver's degradation logic depends on this classification:
// a missing row triggers the insert-on-missing path, a duplicate key means a
// concurrent caller already created the row, and everything else is an I/O
// failure that degrades to a synthesized profile.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/puconnect/core/internal/platform/apperr"
)

var (
	// ErrNotFound is the sentinel returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")

	// ErrDuplicateKey is the sentinel returned when an insert violates a
	// unique constraint.
	ErrDuplicateKey = apperr.Conflict("Resource already exists")
)

// Wrap inspects a database error and maps it onto the store taxonomy.
// It hides internal database details from callers while classifying the
// error type.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Unique-constraint mapping via the Postgres SQLSTATE
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateKey
	}

	// 3. Unknown query errors become internal I/O failures
	return apperr.Internal(err)
}

// IsNotFound reports whether err classifies as a missing row, as opposed to a
// general I/O failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateKey reports whether err classifies as a unique-constraint
// violation.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
