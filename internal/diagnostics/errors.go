// Package diagnostics defines the coded errors reported by the build-time
// rewriter and by the control-transfer protocol.
package diagnostics

import (
	"errors"
	"fmt"
)

type ErrorCode string

// Build-time configuration errors. These are fatal and never reach run time.
const (
	ErrB001 ErrorCode = "B001" // duplicate hot-loop boundary
	ErrB002 ErrorCode = "B002" // missing hot-loop boundary
	ErrB003 ErrorCode = "B003" // ambiguous recursion declaration
	ErrB004 ErrorCode = "B004" // malformed green/red variable list
	ErrB005 ErrorCode = "B005" // malformed portal descriptor
	ErrB006 ErrorCode = "B006" // malformed field annotation
)

// Internal contract violations between compiled code and its consumer.
const (
	ErrI001 ErrorCode = "I001" // unmatched control signal
	ErrI002 ErrorCode = "I002" // result conversion failure
)

// Run-time errors in guest code.
const (
	ErrR001 ErrorCode = "R001"
)

var codeTitles = map[ErrorCode]string{
	ErrB001: "duplicate hot-loop boundary",
	ErrB002: "missing hot-loop boundary",
	ErrB003: "ambiguous recursion declaration",
	ErrB004: "malformed green/red variable list",
	ErrB005: "malformed portal descriptor",
	ErrB006: "malformed field annotation",
	ErrI001: "unmatched control signal",
	ErrI002: "result conversion failure",
	ErrR001: "runtime error",
}

// Title returns the short human-readable name of the code.
func (c ErrorCode) Title() string {
	if t, ok := codeTitles[c]; ok {
		return t
	}
	return string(c)
}

// Fatal reports whether errors with this code abort the session.
func (c ErrorCode) Fatal() bool {
	return c != ErrR001
}

// DiagnosticError is a coded error attached to a location in the flow graph
// (usually the function or portal it was found in).
type DiagnosticError struct {
	Code    ErrorCode
	Where   string
	Message string
	Err     error
}

func NewError(code ErrorCode, where string, format string, args ...interface{}) *DiagnosticError {
	return &DiagnosticError{
		Code:    code,
		Where:   where,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a code and location to an underlying error.
func Wrap(code ErrorCode, where string, err error) *DiagnosticError {
	return &DiagnosticError{Code: code, Where: where, Message: err.Error(), Err: err}
}

func (e *DiagnosticError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Where, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DiagnosticError) Unwrap() error { return e.Err }

// Is matches any DiagnosticError carrying the same code, so callers can test
// errors.Is(err, diagnostics.Code(diagnostics.ErrB001)).
func (e *DiagnosticError) Is(target error) bool {
	var other *DiagnosticError
	if errors.As(target, &other) {
		return other.Code == e.Code && other.Where == "" && other.Message == ""
	}
	return false
}

// Code returns a sentinel usable with errors.Is.
func Code(c ErrorCode) error {
	return &DiagnosticError{Code: c}
}

// CodeOf extracts the code from err, or "" if err carries none.
func CodeOf(err error) ErrorCode {
	var d *DiagnosticError
	if errors.As(err, &d) {
		return d.Code
	}
	return ""
}
