// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Every error that reaches a client carries a Kind and a detail
// message safe to show verbatim.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidCode
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidCode:
		return "invalid_code"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Error is a classified failure with a user-facing detail.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string { return e.Detail }

// New returns a classified error.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf is New with a formatted detail.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Unauthorized(detail string) *Error { return New(KindUnauthorized, detail) }
func Forbidden(detail string) *Error    { return New(KindForbidden, detail) }
func NotFound(detail string) *Error     { return New(KindNotFound, detail) }
func Conflict(detail string) *Error     { return New(KindConflict, detail) }
func InvalidCode(detail string) *Error  { return New(KindInvalidCode, detail) }
func Validation(detail string) *Error   { return New(KindValidation, detail) }

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetailOf returns the user-facing detail of err. Unclassified errors never
// leak their message.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return "internal server error"
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Validationf is Validation with a formatted detail.
func Validationf(format string, args ...any) *Error { return Newf(KindValidation, format, args...) }
