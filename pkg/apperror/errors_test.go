package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	e := New("TRF_001", "Transfer not found", http.StatusNotFound)
	assert.Equal(t, "[TRF_001] Transfer not found", e.Error())

	wrapped := Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, fmt.Errorf("conn refused"))
	assert.Contains(t, wrapped.Error(), "conn refused")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	e := Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, inner)
	assert.True(t, errors.Is(e, inner))
}

func TestErrInvalidTransition_NamesStatuses(t *testing.T) {
	e := ErrInvalidTransition("INITIATED", "COMPLETED")
	assert.Equal(t, "TRF_002", e.Code)
	assert.Equal(t, http.StatusConflict, e.HTTPStatus)
	assert.Contains(t, e.Message, "INITIATED")
	assert.Contains(t, e.Message, "COMPLETED")
}

func TestValidation(t *testing.T) {
	e := Validation("currency is required")
	assert.Equal(t, "TRF_005", e.Code)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus)
	assert.Equal(t, "currency is required", e.Message)
}

func TestErrMissingPrerequisite_NamesArtifact(t *testing.T) {
	e := ErrMissingPrerequisite("OTP_SENT", "QR2")
	assert.Equal(t, "TRF_003", e.Code)
	assert.Contains(t, e.Message, "QR2")
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
	}{
		{ErrInvalidToken(), http.StatusUnauthorized},
		{ErrWrongParty("sender"), http.StatusForbidden},
		{ErrNotFound("transfer"), http.StatusNotFound},
		{ErrConcurrentModification(), http.StatusConflict},
		{ErrInvalidQR(errors.New("bad blob")), http.StatusBadRequest},
		{ErrExpiredQR("QR1"), http.StatusGone},
		{ErrOTPNotFound(), http.StatusBadRequest},
		{ErrOTPExpired(), http.StatusGone},
		{ErrMaxAttemptsExceeded(), http.StatusForbidden},
		{ErrRateLimitExceeded(), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus, tc.err.Code)
	}
}
