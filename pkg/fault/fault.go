// Package fault defines the error taxonomy shared by every stage of a turn.
//
// Components wrap their own sentinel errors in an *Error carrying a Kind so
// callers can classify failures with errors.As or KindOf without knowing which
// package produced them.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is the zero value and never produced deliberately.
	KindUnknown Kind = iota
	// ProviderUnavailable covers network failures and non-2xx replies from the model.
	ProviderUnavailable
	// MalformedArguments means tool call arguments failed to parse or validate.
	MalformedArguments
	// UnknownTool means the model asked for a tool outside the registry.
	UnknownTool
	// DataSourceUnavailable means an adapter could not produce its payload.
	DataSourceUnavailable
	// RenderFailure means the presentation layer failed to draw a payload.
	RenderFailure
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case ProviderUnavailable:
		return "provider_unavailable"
	case MalformedArguments:
		return "malformed_arguments"
	case UnknownTool:
		return "unknown_tool"
	case DataSourceUnavailable:
		return "data_source_unavailable"
	case RenderFailure:
		return "render_failure"
	default:
		return "unknown"
	}
}

// Scoped reports whether a failure of this kind is confined to a single
// invocation and must not abort its turn.
func (k Kind) Scoped() bool {
	return k == MalformedArguments || k == UnknownTool || k == DataSourceUnavailable
}

// Error is a classified failure.
type Error struct {
	Kind Kind

	// Op names the operation that failed, e.g. "resolver.resolve".
	Op string

	// Tool and CallID identify the invocation, when there is one.
	Tool   string
	CallID string

	Err error
}

// New creates a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// ForCall attaches invocation identity and returns the receiver.
func (e *Error) ForCall(tool, callID string) *Error {
	e.Tool = tool
	e.CallID = callID
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Tool != "" {
		msg += " (" + e.Tool + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the innermost human readable cause, without the kind prefix.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Err != nil {
		return fe.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
