// Package errs defines the error kinds shared by every docqa package.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to surface it.
type Kind uint8

const (
	Unknown Kind = iota
	Configuration
	Extraction
	Upstream
	Store
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case Extraction:
		return "extraction error"
	case Upstream:
		return "upstream error"
	case Store:
		return "store error"
	case Conflict:
		return "conflict"
	default:
		return "unknown error"
	}
}

// ErrNamespaceExists is returned by ingest when the target namespace already
// holds records and overwrite was not requested.
var ErrNamespaceExists = errors.New("namespace already holds records")

// Error is the error type returned at every package boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// E wraps err with a kind and operation name. A nil err yields nil.
// If err is already an *Error of the same kind it is returned unchanged.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) && existing.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
