package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures that cross the service boundary.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindIntegrity       ErrorKind = "integrity"
	KindQuotaExceeded   ErrorKind = "quota_exceeded"
	KindNotAvailable    ErrorKind = "not_available"
	KindStateConflict   ErrorKind = "state_conflict"
	KindPermission      ErrorKind = "permission"
	KindUnauthenticated ErrorKind = "unauthenticated"
)

// Error is a classified, user-facing failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrIntegrity       = &Error{Kind: KindIntegrity}
	ErrQuotaExceeded   = &Error{Kind: KindQuotaExceeded}
	ErrNotAvailable    = &Error{Kind: KindNotAvailable}
	ErrStateConflict   = &Error{Kind: KindStateConflict}
	ErrPermission      = &Error{Kind: KindPermission}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
)

func NewError(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
