package utils

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Tip lifecycle errors
	ErrNotFound          = "NOT_FOUND"
	ErrInvalidTransition = "INVALID_TRANSITION"
	ErrValidation        = "VALIDATION"
	ErrConflict          = "CONFLICT" // verification revision moved underneath the caller

	// Store collaborator unreachable or rejecting writes
	ErrStoreUnavailable = "STORE_UNAVAILABLE"

	// Authentication/Authorization errors
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN" // User is authenticated but doesn't have permission
	ErrInvalidToken = "INVALID_TOKEN"

	// Actor communication errors
	ErrActorTimeout    = "ACTOR_TIMEOUT"
	ErrMessageRejected = "MESSAGE_REJECTED"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewNotFoundError(kind, id string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: kind + " not found: " + id,
	}
}

func NewInvalidTransitionError(from, to, sport string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot move tip from %q to %q for sport %q", from, to, sport),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func NewStoreUnavailableError(op string, origin error) *AppError {
	return &AppError{
		Code:    ErrStoreUnavailable,
		Message: "store unavailable during " + op,
		Origin:  origin,
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewActorTimeoutError(actorName string) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
	}
}

// IsErrorCode reports whether err, or anything it wraps, is an AppError with code.
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ErrorCode extracts the AppError code, or "" for foreign errors.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Helper method to check if an error is related to authentication
func IsAuthError(err error) bool {
	switch ErrorCode(err) {
	case ErrUnauthorized, ErrForbidden, ErrInvalidToken:
		return true
	}
	return false
}

// AsStoreError keeps AppErrors as they are and classifies anything else as
// the store being unavailable.
func AsStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewStoreUnavailableError(op, err)
}

// ToAppError returns err as an AppError, classifying foreign errors as internal.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(ErrMessageRejected, "internal error", err)
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return 404 // http.StatusNotFound
	case ErrValidation:
		return 400 // http.StatusBadRequest
	case ErrInvalidTransition:
		return 422 // http.StatusUnprocessableEntity
	case ErrUnauthorized, ErrInvalidToken:
		return 401 // http.StatusUnauthorized
	case ErrForbidden:
		return 403 // http.StatusForbidden
	case ErrConflict:
		return 409 // http.StatusConflict
	case ErrStoreUnavailable:
		return 503 // http.StatusServiceUnavailable
	case ErrActorTimeout, ErrMessageRejected:
		return 500 // http.StatusInternalServerError
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
