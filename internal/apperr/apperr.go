// Package apperr classifies failures into recoverable and fatal kinds so the
// loading and scoring core can report problems without knowing about the UI.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindFetch: remote data unreachable or unreadable; recovered via the local sample.
	KindFetch
	// KindDataUnavailable: no data source worked; fatal for the request.
	KindDataUnavailable
	// KindScoringIncomplete: an entry had no usable metrics; recovered via the sentinel score.
	KindScoringIncomplete
	// KindLLM: the completion API failed; surfaced as a warning.
	KindLLM
	// KindColumns: expected columns missing or malformed; scoring proceeds with less data.
	KindColumns
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindDataUnavailable:
		return "data_unavailable"
	case KindScoringIncomplete:
		return "scoring_incomplete"
	case KindLLM:
		return "llm"
	case KindColumns:
		return "columns"
	default:
		return "unknown"
	}
}

// Recoverable reports whether a failure of this kind degrades the result
// instead of aborting it.
func (k Kind) Recoverable() bool {
	return k != KindDataUnavailable && k != KindUnknown
}

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Fatal reports whether err should abort the request. Unclassified errors are fatal.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !KindOf(err).Recoverable()
}
