package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Standard error kinds
var (
	ErrNotFound             = errors.New("resource not found")
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrConflict             = errors.New("resource conflict")
	ErrStaleWrite           = errors.New("stale write")
	ErrCancellationRejected = errors.New("cancellation rejected")
	ErrNetworkFailure       = errors.New("network failure")
	ErrInternal             = errors.New("internal server error")
	ErrServiceUnavailable   = errors.New("service unavailable")
	ErrTimeout              = errors.New("timeout")
	ErrRateLimited          = errors.New("rate limited")
)

// AppError represents a structured application error with context
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
	Context    map[string]interface{}
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Context:    make(map[string]interface{}),
	}
}

// IsRetryable checks if the error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrNetworkFailure) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// StatusCode returns the HTTP status carried by err, or 500 when none is attached
func StatusCode(err error) int {
	var appErr *AppError

	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict), errors.Is(err, ErrStaleWrite), errors.Is(err, ErrCancellationRejected):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, false)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, false)
}

// NewStaleWriteError reports a document that changed between read and write
func NewStaleWriteError(message string) *AppError {
	return NewAppError(ErrStaleWrite, message, http.StatusConflict, true)
}

// NewCancellationRejectedError creates an error for a refused cancellation
func NewCancellationRejectedError(message string) *AppError {
	return NewAppError(ErrCancellationRejected, message, http.StatusConflict, false)
}

// NewNetworkError creates a transport error towards a collaborator
func NewNetworkError(message string) *AppError {
	return NewAppError(ErrNetworkFailure, message, http.StatusBadGateway, true)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, false)
}

// NewServiceUnavailableError creates an error for a collaborator that is refusing calls
func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrServiceUnavailable, message, http.StatusServiceUnavailable, true)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError(message string) *AppError {
	return NewAppError(ErrRateLimited, message, http.StatusTooManyRequests, true)
}

// FieldErrors maps a form field to its validation message
type FieldErrors map[string]string

// Error renders the field messages in a stable order
func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, f[k]))
	}
	return strings.Join(parts, "; ")
}

// NewValidationError wraps field messages into a 400 error. Fields are kept in the
// error context under "fields" so the HTTP layer can render them inline.
func NewValidationError(fields FieldErrors) *AppError {
	err := NewAppError(ErrValidation, fields.Error(), http.StatusBadRequest, false)
	err.Context["fields"] = map[string]string(fields)
	return err
}

// Fields extracts validation field messages from err, if any
func Fields(err error) map[string]string {
	var appErr *AppError

	if errors.As(err, &appErr) {
		if f, ok := appErr.Context["fields"].(map[string]string); ok {
			return f
		}
	}
	return nil
}
