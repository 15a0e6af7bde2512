package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code, so copies produced by WithInternal still
// compare equal to their sentinel under errors.Is.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	// ErrNotAuthenticated collapses every session-validation failure (missing
	// cookie, decode failure, unknown/expired session, deleted user) into a
	// single indistinguishable result.
	ErrNotAuthenticated = &AppError{
		Code:       "NOT_AUTHENTICATED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrInvalidCredentials is returned both for unknown emails and wrong
	// passwords so callers cannot probe for account existence.
	ErrInvalidCredentials = &AppError{
		Code:       "AUTH_INVALID_CREDENTIALS",
		Message:    "Invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrEmailNotVerified signals correct credentials with verification pending.
	ErrEmailNotVerified = &AppError{
		Code:       "AUTH_EMAIL_NOT_VERIFIED",
		Message:    "Email not verified. Please check your inbox.",
		StatusCode: http.StatusForbidden,
	}

	// ErrInvalidToken covers missing, unknown, and expired verification tokens
	// without distinguishing between them.
	ErrInvalidToken = &AppError{
		Code:       "AUTH_INVALID_TOKEN",
		Message:    "Invalid token",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrDeliveryFailed reports a failed mail dispatch. State persisted before
	// the dispatch is kept; the token stays redeemable on resend.
	ErrDeliveryFailed = &AppError{
		Code:       "MAIL_DELIVERY_FAILED",
		Message:    "Could not send email, please try again",
		StatusCode: http.StatusBadGateway,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewValidation wraps a field-level validation failure. Field detail is safe
// to return to clients.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewBadRequest wraps malformed request payloads with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}
