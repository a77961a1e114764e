// Package kind defines the categorical error kinds surfaced by the data
// plane, and a small wrapper type that carries one of them alongside an
// underlying cause.
package kind

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a categorical error reason. It is not a Go error type in its own
// right; it is attached to an *Error so callers can branch on Is(err, Kind)
// without parsing messages.
type Kind string

// Error kinds, as specified.
const (
	InvalidArgument   Kind = "invalid_argument"
	NotFound          Kind = "not_found"
	InsufficientFunds Kind = "insufficient_funds"
	SenderMismatch    Kind = "sender_mismatch"
	SignatureInvalid  Kind = "signature_invalid"
	Duplicate         Kind = "duplicate"
	Crypto            Kind = "crypto"
	StorageFailure    Kind = "storage_failure"
)

// Error pairs a Kind with a human-readable message and, optionally, an
// underlying cause preserved via github.com/pkg/errors so callers can still
// unwrap to the original failure.
type Error struct {
	K       Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.K, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.K, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind with no wrapped cause.
func New(k Kind, message string) *Error {
	return &Error{K: k, Message: message}
}

// Wrap builds an *Error of the given kind around an existing cause, using
// github.com/pkg/errors to retain a stack trace on the cause the way the
// rest of this module's error paths do.
func Wrap(k Kind, cause error, message string) *Error {
	return &Error{K: k, Message: message, cause: errors.Wrap(cause, message)}
}

// Is reports whether err is a *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.K == k
	}
	return false
}

// InvalidArgumentf is a convenience constructor for the most common kind.
func InvalidArgumentf(format string, args ...interface{}) *Error {
	return New(InvalidArgument, fmt.Sprintf(format, args...))
}

// NotFoundf is a convenience constructor for NotFound.
func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}
