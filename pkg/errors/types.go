package errors

import (
	"fmt"
	"net/http"
)

// Error is the coded error every layer of the auth service speaks.
// The code drives the HTTP status and client-visible body; the cause
// and details stay server-side. Values are treated as immutable after
// construction.
type Error struct {
	// Code is the machine-readable identifier, e.g. "AUTH_002".
	Code Code

	// Message may reach end users. It must never carry provider
	// payloads, key material, or credentials.
	Message string

	// Cause is the wrapped underlying error, reachable through
	// errors.Unwrap and errors.Is.
	Cause error

	// Details holds structured diagnostics, such as the raw provider
	// response of a failed code exchange. Logged, never serialized into
	// API responses.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

var statusByCategory = map[string]int{
	"VAL":     http.StatusBadRequest,
	"AUTH":    http.StatusUnauthorized,
	"AUTHZ":   http.StatusForbidden,
	"NF":      http.StatusNotFound,
	"CONF":    http.StatusConflict,
	"INT":     http.StatusInternalServerError,
	"UNAVAIL": http.StatusServiceUnavailable,
	"TIMEOUT": http.StatusGatewayTimeout,
}

// HTTPStatus maps the code's category to the response status. Unknown
// categories report as internal errors.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByCategory[e.Code.Category()]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WithDetail copies the error with one more detail attached, leaving
// the receiver untouched.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}
