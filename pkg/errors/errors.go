// Package errors provides structured error handling for the Tether runtime.
//
// Validation failures are returned synchronously as *TetherError values that
// carry the failing operation, a Kind, and the object and property involved.
// Failures that have no caller to return to (layout passes, loop tasks) are
// sent to the global ErrorHandler through Report and ReportPanic.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind identifies the category of an error.
type Kind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindInput indicates a malformed value passed at an API boundary.
	KindInput
	// KindReference indicates an invalid sibling selector or reference.
	KindReference
	// KindMisuse indicates an operation on a disposed object or a
	// forbidden write to a read-only or const property.
	KindMisuse
	// KindTransport indicates a failure reported by the native transport.
	KindTransport
	// KindLayout indicates a reference that could not be resolved during a
	// layout pass.
	KindLayout
	// KindParsing indicates an inbound notification that could not be decoded.
	KindParsing
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindReference:
		return "reference"
	case KindMisuse:
		return "misuse"
	case KindTransport:
		return "transport"
	case KindLayout:
		return "layout"
	case KindParsing:
		return "parsing"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Sentinel errors wrapped by TetherError values.
var (
	// ErrDisposed is returned for operations on a disposed native object.
	ErrDisposed = stderrors.New("object is disposed")

	// ErrReadOnly is returned when writing a read-only or const property.
	ErrReadOnly = stderrors.New("property is read-only")

	// ErrUnknownProperty is returned for properties missing from the type table.
	ErrUnknownProperty = stderrors.New("unknown property")

	// ErrInvalidConstraint is wrapped by every constraint parse failure.
	ErrInvalidConstraint = stderrors.New("invalid constraint")

	// ErrInvalidValue is wrapped by property encode failures.
	ErrInvalidValue = stderrors.New("invalid value")
)

// TetherError represents a structured error in the Tether runtime.
type TetherError struct {
	// Op is the operation that failed (e.g., "object.Set").
	Op string
	// Kind categorizes the error.
	Kind Kind
	// Target is the cid of the native object involved, if any.
	Target string
	// Property is the property or event name involved, if any.
	Property string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack for reported errors.
	StackTrace string
	// Timestamp is when the error was reported.
	Timestamp time.Time
}

func (e *TetherError) Error() string {
	switch {
	case e.Target != "" && e.Property != "":
		return fmt.Sprintf("%s [%s] %s.%s: %v", e.Op, e.Kind, e.Target, e.Property, e.Err)
	case e.Target != "":
		return fmt.Sprintf("%s [%s] %s: %v", e.Op, e.Kind, e.Target, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *TetherError) Unwrap() error {
	return e.Err
}

// E builds a TetherError for op with the given kind and cause.
func E(op string, kind Kind, err error) *TetherError {
	return &TetherError{Op: op, Kind: kind, Err: err}
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "engine.Loop").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a failure to decode an inbound notification.
type ParseError struct {
	// Event is the notification event name.
	Event string
	// DataType is the expected type name.
	DataType string
	// Got is the actual data received.
	Got any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from event %s: got %T", e.DataType, e.Event, e.Got)
}

// ErrorHandler receives reported errors.
type ErrorHandler interface {
	// HandleError is called when an error is reported.
	HandleError(err *TetherError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}

// KindOf returns the Kind of the first TetherError in err's chain.
func KindOf(err error) Kind {
	var te *TetherError
	if stderrors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// New, Is, As and Join forward to the standard library so callers need a
// single errors import.
func New(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
