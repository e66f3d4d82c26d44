// Package errs is the application error taxonomy. Every failure that crosses
// a service boundary is an *AppError carrying a stable Code, so HTTP handlers
// can map it to a status without inspecting messages.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a stable error code for programmatic handling.
type Code string

const (
	CodeInternal     Code = "internal"
	CodeValidation   Code = "validation"
	CodeRemote       Code = "remote"
	CodeLimitReached Code = "limit_reached"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeUnavailable  Code = "unavailable"
)

// AppError is a structured error that carries a code, message, and optional metadata.
type AppError struct {
	Code    Code
	Message string
	Err     error
	Meta    map[string]any
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithMeta attaches metadata to the error.
func (e *AppError) WithMeta(k string, v any) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

// New creates a new AppError with code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// Validation reports a missing or malformed field. field may be empty.
func Validation(field, message string) *AppError {
	e := New(CodeValidation, message)
	if field != "" {
		e.WithMeta("field", field)
	}
	return e
}

// Remote wraps a failed call to an external service.
func Remote(err error, message string) *AppError {
	return Wrap(err, CodeRemote, message)
}

// NotFound reports a missing record.
func NotFound(what string) *AppError {
	return New(CodeNotFound, what+" not found")
}

// Conflict reports an out-of-order or stale operation.
func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}

// LimitReached reports an exhausted usage ceiling.
func LimitReached(resource string, limit, used int) *AppError {
	return New(CodeLimitReached, "usage limit reached for "+resource).
		WithMeta("resource", resource).
		WithMeta("limit", limit).
		WithMeta("used", used)
}

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// HTTPStatus maps a code to the status the API answers with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeRemote:
		return http.StatusBadGateway
	case CodeLimitReached:
		return http.StatusPaymentRequired
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
