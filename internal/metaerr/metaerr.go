// Package metaerr defines the error taxonomy shared by every extraction
// package: a small set of Kinds plus one Error type that wraps a cause and
// carries the context (namespace, tag, offset) that made the error actionable
// for a caller, without forcing every package to invent its own error type.
package metaerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so that callers can decide, without string
// matching, whether an error should abort the whole extraction or whether it
// is the kind of thing that belongs on a warnings list instead.
type Kind int

const (
	// ParseError signals that the input could not be parsed as the format it
	// claims to be (corrupt header, truncated stream, bad magic bytes).
	ParseError Kind = iota
	// UnsupportedFormat signals a well-formed input the engine has no
	// decoder for.
	UnsupportedFormat
	// BoundsError signals an offset or length computed from the data itself
	// that falls outside the buffer it is supposed to index into.
	BoundsError
	// ConversionError signals a ValueConv/PrintConv step that could not
	// produce a value (type mismatch, division by zero, bad expression).
	ConversionError
	// CycleDetected signals that subdirectory recursion revisited an
	// (offset, table) pair already on the current walk's stack.
	CycleDetected
	// DepthExceeded signals that subdirectory recursion hit its configured
	// maximum depth.
	DepthExceeded
	// MissingContext signals that a dispatch rule or expression needed a
	// piece of ProcessorContext (Manufacturer, Model, parent tag, ...) that
	// was not available.
	MissingContext
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case BoundsError:
		return "BoundsError"
	case ConversionError:
		return "ConversionError"
	case CycleDetected:
		return "CycleDetected"
	case DepthExceeded:
		return "DepthExceeded"
	case MissingContext:
		return "MissingContext"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single error type used throughout the engine. Context is a
// free-form label (a tag name, table name, or namespace path) describing
// where the error occurred; it has no fixed schema because the callers that
// fill it in span containers, tables, and expressions.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

func Newf(kind Kind, context string, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: context, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Context, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, metaerr.Kind) via a sentinel comparison: two
// *Error values match if their Kind matches, regardless of Context/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Of reports the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Sentinel returns a zero-context *Error of the given Kind, suitable for use
// with errors.Is(err, metaerr.Sentinel(metaerr.CycleDetected)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind, Err: errors.New(kind.String())}
}
