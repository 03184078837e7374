// Package errors provides structured error types for npmship.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across lifecycle steps and the CLI
//   - Machine-readable error codes for the surrounding release orchestrator
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation and credential failures
//   - MISSING_*: Required configuration that could not be resolved
//   - NETWORK_*/COMMAND_*: External collaborator failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNoPkgName, "package name is missing")
//	if errors.Is(err, errors.ErrCodeNoPkgName) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "whoami against %s", registry)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Plugin option validation errors (aggregated, reported together)
	ErrCodeInvalidNpmPublish Code = "INVALID_NPM_PUBLISH"
	ErrCodeInvalidTarballDir Code = "INVALID_TARBALL_DIR"
	ErrCodeInvalidPkgRoot    Code = "INVALID_PKG_ROOT"
	ErrCodeNoPkgName         Code = "MISSING_PACKAGE_NAME"

	// Credential errors (fatal to the verification step)
	ErrCodeNoToken      Code = "MISSING_NPM_TOKEN"
	ErrCodeInvalidToken Code = "INVALID_NPM_TOKEN"

	// Manifest errors
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"

	// Options file errors (the file itself, not the option values)
	ErrCodeInvalidOptions Code = "INVALID_OPTIONS_FILE"

	// External collaborator errors
	ErrCodeNetwork       Code = "NETWORK_ERROR"
	ErrCodeCommandFailed Code = "COMMAND_FAILED"

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
