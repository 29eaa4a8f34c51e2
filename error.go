package folio

import (
	"context"
	"errors"
	"fmt"
)

// Application error codes.
//
// ENETWORK, EPARSE, ESCRIPT and ECANCELED classify acquisition failures.
// The remaining codes are used by storage and input validation.
const (
	ECONFLICT = "conflict"
	EINTERNAL = "internal"
	EINVALID  = "invalid"
	ENOTFOUND = "not_found"

	ENETWORK  = "network"
	EPARSE    = "parse"
	ESCRIPT   = "script"
	ECANCELED = "canceled"
)

// Error represents an application-specific error.
type Error struct {
	// Machine-readable error code.
	Code string

	// Human-readable error message.
	Message string
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	return fmt.Sprintf("folio error: code=%s message=%s", e.Code, e.Message)
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL, except bare context errors:
// context.Canceled maps to ECANCELED and context.DeadlineExceeded to ENETWORK,
// since a deadline only ever bounds a fetch.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	} else if errors.Is(err, context.Canceled) {
		return ECANCELED
	} else if errors.Is(err, context.DeadlineExceeded) {
		return ENETWORK
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
