package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindPermission        ErrorKind = "PERMISSION"
	KindConflict          ErrorKind = "CONFLICT"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInternalInvariant ErrorKind = "INTERNAL_INVARIANT"
)

// Error is the only error type the negotiation core returns for expected
// failures. Anything else coming out of an operation is a storage failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

func Permissionf(format string, args ...any) error {
	return newError(KindPermission, format, args...)
}

func Conflictf(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

func InternalInvariantf(format string, args ...any) error {
	return newError(KindInternalInvariant, format, args...)
}

// KindOf returns the kind of a domain error anywhere in err's chain, or ""
// when err is nil or not a domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
