// Package faults defines the typed failure kinds the settlement workflow
// surfaces to callers. Every kind carries a human-readable message; the HTTP
// layer maps kinds to status codes.
package faults

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindPreconditionFailed
	KindConflict
	KindValidation
)

// ErrLedgerDivergence is the fatal class: a wallet balance that does not
// equal its ledger sum. Operations halt and operators are alerted; it is
// never auto-repaired inline.
var ErrLedgerDivergence = errors.New("wallet balance diverges from ledger sum")

// Error is a kinded failure. Services return *Error for every rejected
// operation; nothing is silently swallowed except notification delivery.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func PreconditionFailed(format string, args ...any) *Error {
	return newf(KindPreconditionFailed, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// KindOf extracts the failure kind from err, unwrapping as needed.
// Returns KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err is a fault of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
