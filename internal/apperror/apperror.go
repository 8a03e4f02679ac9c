// Package apperror defines the error taxonomy shared by the gateway, the
// scheduler, and the local stores.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrUpstream   = errors.New("upstream error")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrValidation = errors.New("validation error")
)

// AppError carries a sentinel plus the details needed to show it to a user.
type AppError struct {
	Err        error  // one of the sentinels above
	Message    string // human-readable message
	Field      string // optional: input field that failed validation
	StatusCode int    // upstream HTTP status, zero otherwise
	StatusText string // upstream HTTP status text
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Upstream reports a non-success status returned by a provider.
func Upstream(code int, text string) *AppError {
	return &AppError{
		Err:        ErrUpstream,
		Message:    fmt.Sprintf("%d %s", code, text),
		StatusCode: code,
		StatusText: text,
	}
}

// NotFound reports that a provider returned zero matches for a lookup.
func NotFound(resource, query string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("no %s found for %q", resource, query),
	}
}

// PermissionDenied reports a refused platform permission.
func PermissionDenied(message string) *AppError {
	return &AppError{
		Err:     ErrPermission,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// UserMessage renders err the way the dashboard shows it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong. Please try again."
	}

	switch {
	case errors.Is(appErr, ErrUpstream):
		return fmt.Sprintf("Weather service error: %s", appErr.Message)
	case errors.Is(appErr, ErrNotFound):
		return "No results found. Try a different search."
	default:
		return appErr.Message
	}
}
