// Package errs provides the structured error type shared by the store, the
// allocator and the HTTP API. Every error carries a code, a message and a
// retryable flag so callers can decide how to surface it.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for API responses and retry decisions.
type Code string

// All error codes.
const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeRateLimited      Code = "RATE_LIMIT_EXCEEDED"
	CodeDatabase         Code = "DATABASE_ERROR"
	CodeAssignmentFailed Code = "ASSIGNMENT_FAILED"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotFound     = New(CodeNotFound, "not found")
	ErrConflict     = New(CodeConflict, "conflict")
	ErrValidation   = New(CodeValidation, "validation failed")
	ErrUnauthorized = New(CodeUnauthorized, "unauthorized")
)

// AppError is the structured error type used throughout exprora.
type AppError struct {
	Code      Code
	Message   string
	Details   map[string]any
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a new AppError.
func New(code Code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: isRetryable(code),
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// NotFound reports a missing resource, e.g. NotFound("experiment").
func NotFound(resource string) *AppError {
	return Newf(CodeNotFound, "%s not found", resource)
}

// Validation reports a bad input.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// Conflict reports a state conflict.
func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// CodeOf extracts the error code from an error chain.
// Errors that are not AppErrors report CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// As returns the AppError in the chain, or an internal error wrapping err.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(CodeInternal, "internal server error", err)
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeAssignmentFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isRetryable(code Code) bool {
	switch code {
	case CodeDatabase, CodeAssignmentFailed, CodeRateLimited:
		return true
	default:
		return false
	}
}
