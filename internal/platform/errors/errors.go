// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode classifies failures across the corrector
// Values are stable; they map onto process exit codes
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeFormat is for malformed headers, frames, wrong field counts and non-numeric values
	ErrorCodeFormat

	// ErrorCodeUnknownDiode is for a diode index outside the detector model geometry
	ErrorCodeUnknownDiode

	// ErrorCodeCorrection is for undefined corrections (table too small, non-positive factor, shape mismatch)
	ErrorCodeCorrection

	// ErrorCodeConfig is for invalid run configuration or coefficient datasets
	ErrorCodeConfig

	// ErrorCodeIO is for file system failures
	ErrorCodeIO
)

var codeNames = [...]string{"unknown", "format", "unknown_diode", "correction", "config", "io"}

// String returns the snake_case label used in logs and metrics
func (c ErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}

// ExitCode turns an ErrorCode into a process exit status
func ExitCode(c ErrorCode) int {
	switch c {
	case ErrorCodeFormat:
		return 3
	case ErrorCodeUnknownDiode:
		return 4
	case ErrorCodeCorrection:
		return 5
	case ErrorCodeConfig:
		return 2
	case ErrorCodeIO:
		return 6
	default:
		return 1
	}
}

// Error is the structured error type with wrapping and metadata
// line and field locate the offending input (1-based, 0 when unknown)
// op is an optional operation tag; orig is the wrapped cause
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	line  int
	field int
	op    string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	switch {
	case e.line > 0 && e.field > 0:
		msg = fmt.Sprintf("line %d, field %d: %s", e.line, e.field, msg)
	case e.line > 0:
		msg = fmt.Sprintf("line %d: %s", e.line, msg)
	}
	if e.op != "" {
		msg = e.op + ": " + msg
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", msg, e.orig)
	}
	return msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Line returns the offending input line, 0 if unknown
func (e *Error) Line() int { return e.line }

// Field returns the offending 1-based field within the line, 0 if unknown
func (e *Error) Field() int { return e.field }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Message returns the bare message without location or cause
func (e *Error) Message() string { return e.msg }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return err != nil && CodeOf(err) == code }

// ExitStatus returns the mapped exit code for any error, 0 for nil
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	return ExitCode(CodeOf(err))
}

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithLine attaches a line number to an *Error. If err isn't *Error, returns err unchanged
func WithLine(err error, line int) error {
	if e, ok := As(err); ok {
		c := *e
		c.line = line
		return &c
	}
	return err
}

// WithField attaches a field index to an *Error. If err isn't *Error, returns err unchanged
func WithField(err error, field int) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// WithOp attaches an operation label to an *Error. If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil (helper for 1-liners)
func WrapIf(err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, msg)
}

// Sugar

// Formatf returns a format error located at line/field (pass 0 when unknown)
func Formatf(line, field int, format string, a ...any) error {
	return &Error{code: ErrorCodeFormat, msg: fmt.Sprintf(format, a...), line: line, field: field}
}

// UnknownDiodef returns an unknown diode error
func UnknownDiodef(format string, a ...any) error { return Newf(ErrorCodeUnknownDiode, format, a...) }

// Correctionf returns a correction error
func Correctionf(format string, a ...any) error { return Newf(ErrorCodeCorrection, format, a...) }

// Configf returns a configuration error
func Configf(format string, a ...any) error { return Newf(ErrorCodeConfig, format, a...) }

// IOf returns an io error wrapping orig
func IOf(orig error, format string, a ...any) error { return Wrapf(orig, ErrorCodeIO, format, a...) }
