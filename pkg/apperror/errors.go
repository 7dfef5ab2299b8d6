package apperror

import (
	"fmt"
	"net/http"
)

// Codes callers branch on. The rest of the taxonomy is only ever matched by
// HTTP status at the adapter boundary.
const (
	CodeOTPExpired          = "OTP_002"
	CodeMaxAttemptsExceeded = "OTP_003"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ErrWrongParty is returned when an authenticated caller is not the party
// (sender or receiver) allowed to perform the requested step.
func ErrWrongParty(role string) *AppError {
	return New("AUTH_002", fmt.Sprintf("Caller is not the %s of this transfer", role), http.StatusForbidden)
}

// ---- Transfer Protocol (TRF) ----

func ErrNotFound(entity string) *AppError {
	return New("TRF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidTransition(current, target string) *AppError {
	return New("TRF_002",
		fmt.Sprintf("Illegal status transition from %s to %s", current, target),
		http.StatusConflict)
}

func ErrMissingPrerequisite(target, artifact string) *AppError {
	return New("TRF_003",
		fmt.Sprintf("Cannot reach %s: %s has not been produced", target, artifact),
		http.StatusConflict)
}

func ErrConcurrentModification() *AppError {
	return New("TRF_004", "Transfer was modified concurrently, retry the read", http.StatusConflict)
}

func ErrInvalidAmount() *AppError {
	return New("TRF_005", "Amount must be a positive decimal", http.StatusBadRequest)
}

func Validation(message string) *AppError {
	return New("TRF_005", message, http.StatusBadRequest)
}

// ---- QR Tokens (QR) ----

func ErrInvalidQR(err error) *AppError {
	return Wrap("QR_001", "QR payload failed to decode or validate", http.StatusBadRequest, err)
}

func ErrExpiredQR(qrType string) *AppError {
	return New("QR_002", fmt.Sprintf("%s token has expired, transfer failed", qrType), http.StatusGone)
}

func ErrQRAlreadyUsed() *AppError {
	return New("QR_003", "QR token has already been presented", http.StatusConflict)
}

// ---- One-Time Passwords (OTP) ----

func ErrOTPNotFound() *AppError {
	return New("OTP_001", "No matching verification code", http.StatusBadRequest)
}

func ErrOTPExpired() *AppError {
	return New(CodeOTPExpired, "Verification code has expired, transfer failed", http.StatusGone)
}

func ErrMaxAttemptsExceeded() *AppError {
	return New(CodeMaxAttemptsExceeded, "Maximum verification attempts exceeded, transfer failed", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "Token encryption failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
