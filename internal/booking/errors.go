package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a booking error so transports can map it to a status
// code without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindUnauthorized
	KindStorage
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// treated as storage failures.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindStorage
}

// Message returns the client-facing message of a classified error, or a
// generic one for anything else.
func Message(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Msg
	}
	return "internal error"
}
