// Copyright (c) 2026 PU Connect. All rights reserved.

package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puconnect/core/internal/platform/apperr"
	"github.com/puconnect/core/internal/platform/respond"
)

/*
TestOK verifies the success envelope: data wrapped under "data", 200, and the
JSON content type.
*/
func TestOK(t *testing.T) {
	recorder := httptest.NewRecorder()

	respond.OK(recorder, map[string]string{"status": "ok"})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json; charset=utf-8", recorder.Header().Get("Content-Type"))

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "ok", envelope.Data["status"])
}

/*
TestError_AppError verifies that a typed [apperr.AppError] maps to its own
HTTP status with code and message in the error envelope.
*/
func TestError_AppError(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/session", nil)

	respond.Error(recorder, request, apperr.NotFound("Profile"))

	require.Equal(t, http.StatusNotFound, recorder.Code)

	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "NOT_FOUND", envelope.Code)
	assert.Equal(t, "Profile not found", envelope.Error)
}

/*
TestError_ValidationDetails verifies that field-level failures survive into
the error envelope.
*/
func TestError_ValidationDetails(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/session", nil)

	respond.Error(recorder, request, apperr.ValidationError("Validation failed",
		apperr.FieldError{Field: "email", Message: "Must be a valid email address"},
	))

	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var envelope struct {
		Code    string `json:"code"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
	require.Len(t, envelope.Details, 1)
	assert.Equal(t, "email", envelope.Details[0].Field)
}

/*
TestError_UnexpectedErrorIsHidden verifies that a raw internal error becomes
a generic 500 envelope with no implementation detail leaked to the client.
*/
func TestError_UnexpectedErrorIsHidden(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/session", nil)

	respond.Error(recorder, request, errors.New(`pq: syntax error near "SELEC"`))

	require.Equal(t, http.StatusInternalServerError, recorder.Code)

	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "INTERNAL_ERROR", envelope.Code)
	assert.Equal(t, "An unexpected error occurred", envelope.Error)
	assert.NotContains(t, recorder.Body.String(), "SELEC")
}
