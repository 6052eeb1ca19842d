// Package apierr classifies the failures the core surfaces to its callers.
package apierr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Validation errors are caught before any network call and are never retried.
	Validation Kind = iota
	// Transport errors are network or HTTP failures; re-issuing the operation may succeed.
	Transport
	// Backend errors are well-formed {success:false, error} answers from the backend.
	Backend
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Transport:
		return "transport"
	case Backend:
		return "backend"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

// Error returns the underlying message verbatim so callers can show it as-is.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d)", e.Kind, e.Status)
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validationf(op string, format string, args ...any) *Error {
	return &Error{Kind: Validation, Op: op, Err: fmt.Errorf(format, args...)}
}

func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool { return is(err, Validation) }
func IsTransport(err error) bool  { return is(err, Transport) }
func IsBackend(err error) bool    { return is(err, Backend) }

func is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
