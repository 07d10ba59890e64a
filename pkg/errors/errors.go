// Package errors provides structured error types for neuroglitch.
//
// Every error the simulation engine raises carries a machine-readable Code
// so that callers (the CLI batch loop in particular) can decide whether to
// skip an input or abort:
//
//	if errors.Is(err, errors.ErrCodeInvalidParameter) {
//	    // bad count or fraction
//	}
//
// I/O failures from the NIfTI, preview and result packages are wrapped with
// ErrCodeIOFailure and keep their cause for errors.As / errors.Unwrap.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// ErrCodeInvalidParameter marks an out-of-range or malformed count/fraction.
	ErrCodeInvalidParameter Code = "INVALID_PARAMETER"
	// ErrCodeInvalidAxisList marks an axis list with a bad length or value.
	ErrCodeInvalidAxisList Code = "INVALID_AXIS_LIST"
	// ErrCodeInvalidSpecCount marks a spec list whose length does not suit the mode.
	ErrCodeInvalidSpecCount Code = "INVALID_SPEC_COUNT"
	// ErrCodeUnknownTransformType marks an unrecognised transform tag.
	ErrCodeUnknownTransformType Code = "UNKNOWN_TRANSFORM_TYPE"
	// ErrCodeIOFailure marks a failure surfaced from file I/O.
	ErrCodeIOFailure Code = "IO_FAILURE"
)

// Error carries a Code next to its message. Cause, when set, is the
// failure it wraps.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes Cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an Error with a formatted message and no cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap returns an Error that keeps cause in its chain.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// GetCode returns the code of the first *Error in the chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage renders err for people: the message of the first *Error in
// the chain followed by its causes, without any code prefixes.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + UserMessage(e.Cause)
}
