// Package calcerr defines the error kinds surfaced by the solvers.
// Every failure is terminal for the request: the computations are pure, so
// re-running the same input yields the same error.
package calcerr

import (
	"errors"
	"fmt"
)

// Kind is a coarse-grained classification of a solver failure.
type Kind string

const (
	// KindInvalidInput means the request violates a documented precondition.
	KindInvalidInput Kind = "invalid_input"
	// KindDegenerateLattice means the basis matrix is numerically singular.
	KindDegenerateLattice Kind = "degenerate_lattice"
)

// Sentinels usable with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDegenerateLattice = errors.New("degenerate lattice")
)

// Error carries the operation, the offending field and the violated constraint.
type Error struct {
	Op    string
	Kind  Kind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Field != "" {
		base += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Msg != "" {
		base += ": " + e.Msg
	}
	return base
}

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	case ErrDegenerateLattice:
		return e.Kind == KindDegenerateLattice
	}
	return false
}

// Details renders "field: constraint" for transport error bodies.
func (e *Error) Details() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// Invalid builds an InvalidInput error.
func Invalid(op, field, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindInvalidInput, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Degenerate builds a DegenerateLattice error.
func Degenerate(op, field, format string, args ...any) *Error {
	return &Error{Op: op, Kind: KindDegenerateLattice, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err (or anything it wraps) is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var ce *Error
	ok := errors.As(err, &ce)
	return ce, ok
}
