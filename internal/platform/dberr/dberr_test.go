// Copyright (c) 2026 PU Connect. All rights reserved.

package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puconnect/core/internal/platform/apperr"
	"github.com/puconnect/core/internal/platform/dberr"
)

/*
TestWrap_Classification verifies the three-way classification the resolver
depends on: missing row, duplicate key, everything else.
*/
func TestWrap_Classification(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		isNotFound     bool
		isDuplicateKey bool
	}{
		{"no_rows", pgx.ErrNoRows, true, false},
		{"wrapped_no_rows", fmt.Errorf("query: %w", pgx.ErrNoRows), true, false},
		{"unique_violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false, true},
		{"other_pg_error", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, false, false},
		{"plain_error", errors.New("connection refused"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := dberr.Wrap(tt.err)
			require.Error(t, wrapped)

			assert.Equal(t, tt.isNotFound, dberr.IsNotFound(wrapped))
			assert.Equal(t, tt.isDuplicateKey, dberr.IsDuplicateKey(wrapped))

			// Everything that leaves the store is an AppError.
			assert.True(t, apperr.IsAppError(wrapped))
		})
	}
}

/*
TestWrap_NilPassesThrough verifies that a nil error stays nil.
*/
func TestWrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, dberr.Wrap(nil))
}

/*
TestWrap_UnknownErrorsHideDetails verifies that raw driver errors never leak
into the user-visible message.
*/
func TestWrap_UnknownErrorsHideDetails(t *testing.T) {
	wrapped := dberr.Wrap(errors.New("pq: SSL connection has been closed unexpectedly"))

	ae := apperr.As(wrapped)
	require.NotNil(t, ae)
	assert.Equal(t, "INTERNAL_ERROR", ae.Code)
	assert.NotContains(t, ae.Message, "SSL")
}
