package errs

import (
	"errors"
)

// Code is a verification error code.
type Code string

const (
	InvalidArgument  Code = "invalid_argument"
	Unavailable      Code = "unavailable"
	NavigationFailed Code = "navigation_failed"
	AssertionFailed  Code = "assertion_failed"
	ArtifactFailed   Code = "artifact_failed"
	Canceled         Code = "canceled"
	Internal         Code = "internal"
)

// Error is a coded verification error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" && e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// ExitCode maps an error to a process exit status.
// Configuration problems exit 2 so callers can tell them apart from a failed check.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case InvalidArgument:
		return 2
	case Canceled:
		return 130
	default:
		return 1
	}
}
