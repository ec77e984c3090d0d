// Package apperr defines the error taxonomy shared by the service layer and
// the HTTP layer. Handlers translate a Kind into a status code; nothing else
// inspects error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for the transport layer.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindInvalidState  Kind = "invalid_state"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
)

// Error is a categorized, client-facing error.
type Error struct {
	Kind    Kind                   `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail returns e with key set in its details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation reports malformed or out-of-range input.
func Validation(code, message string) *Error {
	return newError(KindValidation, code, message)
}

// Authorization reports an actor not allowed to perform the operation.
func Authorization(code, message string) *Error {
	return newError(KindAuthorization, code, message)
}

// InvalidState reports an operation not legal for the current status.
func InvalidState(code, message string) *Error {
	return newError(KindInvalidState, code, message)
}

// Conflict reports an overlapping appointment.
func Conflict(code, message string) *Error {
	return newError(KindConflict, code, message)
}

// NotFound reports an unknown id.
func NotFound(code, message string) *Error {
	return newError(KindNotFound, code, message)
}

// As extracts the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or "" if err is not categorized.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
