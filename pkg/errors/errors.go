// Package errors provides structured error types for legacypack.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the library packages
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Build-fatal errors
//
// Four typed errors describe why a build stopped. None of them is retried;
// every component returns them as soon as they are detected:
//   - [EntryNotFoundError]: the entry module is missing or unreadable
//   - [UnresolvedImportError]: an import names no file and no external
//   - [UnsupportedSyntaxError]: a construct has no legacy rewrite
//   - [EmitIOError]: the artifact could not be written
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "unknown engine %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle configuration error
//	}
//
//	var unresolved *errors.UnresolvedImportError
//	if stderrors.As(err, &unresolved) {
//	    fmt.Println(unresolved.Importer, unresolved.Specifier)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidName   Code = "INVALID_NAME"

	// Source errors
	ErrCodeSyntax Code = "SYNTAX_ERROR"

	// Build-fatal errors
	ErrCodeEntryNotFound     Code = "ENTRY_NOT_FOUND"
	ErrCodeUnresolvedImport  Code = "UNRESOLVED_IMPORT"
	ErrCodeUnsupportedSyntax Code = "UNSUPPORTED_SYNTAX"
	ErrCodeEmitIO            Code = "EMIT_IO"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
	ErrCodeCache    Code = "CACHE_ERROR"
)

// coded is implemented by the typed build errors.
type coded interface {
	Code() Code
}

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
// It unwraps the error chain looking for an *Error or a typed build error
// with a matching code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c coded
	if errors.As(err, &c) {
		return c.Code()
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

// EntryNotFoundError reports an entry module that does not exist, is not a
// regular file or cannot be read.
type EntryNotFoundError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *EntryNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("entry module %s not found: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("entry module %s not found", e.Path)
}

// Unwrap returns the underlying filesystem error.
func (e *EntryNotFoundError) Unwrap() error { return e.Err }

// Code returns the error code for this error type.
func (e *EntryNotFoundError) Code() Code { return ErrCodeEntryNotFound }

// UnresolvedImportError reports an import that resolves to neither a file
// nor a declared external, or whose file cannot be read.
type UnresolvedImportError struct {
	Importer  string // module ID of the importing module
	Specifier string // the import specifier as written
	Line      int
	Err       error // set when the resolved file could not be read
}

// Error implements the error interface.
func (e *UnresolvedImportError) Error() string {
	msg := fmt.Sprintf("cannot resolve %q imported by %s", e.Specifier, e.Importer)
	if e.Line > 0 {
		msg = fmt.Sprintf("cannot resolve %q imported by %s:%d", e.Specifier, e.Importer, e.Line)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the read error, if any.
func (e *UnresolvedImportError) Unwrap() error { return e.Err }

// Code returns the error code for this error type.
func (e *UnresolvedImportError) Code() Code { return ErrCodeUnresolvedImport }

// UnsupportedSyntaxError reports a construct that the target dialect lacks
// and that has no rewrite.
type UnsupportedSyntaxError struct {
	Path    string
	Line    int
	Column  int
	Feature string // short description, e.g. "class declaration"
	Reason  string // optional detail
}

// Error implements the error interface.
func (e *UnsupportedSyntaxError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Path, e.Line, e.Column)
	}
	if loc == "" {
		loc = "<input>"
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: unsupported syntax for target: %s (%s)", loc, e.Feature, e.Reason)
	}
	return fmt.Sprintf("%s: unsupported syntax for target: %s", loc, e.Feature)
}

// Code returns the error code for this error type.
func (e *UnsupportedSyntaxError) Code() Code { return ErrCodeUnsupportedSyntax }

// EmitIOError reports a failure to write the artifact.
type EmitIOError struct {
	Path string
	Op   string // "create", "write", "sync", "rename", ...
	Err  error
}

// Error implements the error interface.
func (e *EmitIOError) Error() string {
	return fmt.Sprintf("emit %s: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *EmitIOError) Unwrap() error { return e.Err }

// Code returns the error code for this error type.
func (e *EmitIOError) Code() Code { return ErrCodeEmitIO }
