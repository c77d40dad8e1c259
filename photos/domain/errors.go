package domain

import "fmt"

// ErrorKind classifies failures surfaced by the photo store.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindStorageConstraint  ErrorKind = "storage_constraint"
	KindStorageUnavailable ErrorKind = "storage_unavailable"
	KindNotFound           ErrorKind = "not_found"
)

var (
	// ErrValidation matches caller data that violates a record invariant. Nothing was written.
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid photo"}
	// ErrStorageConstraint matches writes rejected by the storage engine itself.
	ErrStorageConstraint = &Error{Kind: KindStorageConstraint, Message: "storage constraint violated"}
	// ErrStorageUnavailable matches failures to open or reach the storage engine.
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable, Message: "storage unavailable"}
	// ErrNotFound matches lookups of a photo that does not exist.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "photo not found"}
)

// Error is a classified photo store failure.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NewValidationError reports invalid caller data for op.
func NewValidationError(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// Wrap classifies cause under kind.
func Wrap(kind ErrorKind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}
