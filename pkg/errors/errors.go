// Package errors provides structured error types for drvgraph.
//
// Errors carry a machine-readable [Code] so the CLI can tell collaborator
// failures (a Nix command exiting non-zero, undecodable output) apart from
// invalid input and internal failures:
//
//	err := errors.New(errors.ErrCodeInvalidInput, "empty flake reference")
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCommandFailed, origErr, "query %s", drvPath)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Collaborator errors
	ErrCodeCommandFailed   Code = "COMMAND_FAILED"
	ErrCodeMalformedOutput Code = "MALFORMED_OUTPUT"
	ErrCodeTimeout         Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
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
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// CommandError describes an external command that exited unsuccessfully.
// It is usually the Cause of an ErrCodeCommandFailed error.
type CommandError struct {
	Command  string   // Program name, e.g. "nix-store"
	Args     []string // Arguments passed to the program
	ExitCode int      // Exit status, -1 if the process did not start or was killed
	Stderr   string   // Captured standard error, trimmed
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	cmd := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s: did not complete", cmd)
	}
	return fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
}

// Code returns the error code for this error type.
func (e *CommandError) Code() Code {
	return ErrCodeCommandFailed
}
