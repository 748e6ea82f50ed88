package agent

import (
	"errors"
	"fmt"
)

// ErrorType classifies task failures so callers can map them to a
// transport-level response without string matching.
type ErrorType int8

const (
	// ErrorTypeValidation represents malformed or incomplete task input.
	ErrorTypeValidation ErrorType = iota
	// ErrorTypeNotFound represents a referenced entity that does not exist.
	ErrorTypeNotFound
	// ErrorTypeUnavailable represents an unreachable external collaborator
	// (calendar backend, signature backend, mail relay).
	ErrorTypeUnavailable
	// ErrorTypeRejected represents a collaborator that answered but refused
	// the request.
	ErrorTypeRejected
	// ErrorTypeInternal represents default for unclassified errors.
	ErrorTypeInternal
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeUnavailable:
		return "collaborator_unavailable"
	case ErrorTypeRejected:
		return "collaborator_rejected"
	case ErrorTypeInternal:
		return "internal"
	default:
		return "invalid"
	}
}

// Error is a classified task error. The Op field names the operation that
// failed so replies read "op: cause".
type Error struct {
	Err  error
	Op   string
	Type ErrorType
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Op
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an operation name and a classification.
func NewError(errType ErrorType, op string, err error) *Error {
	return &Error{Err: err, Op: op, Type: errType}
}

// Errorf builds a classified error from a format string.
func Errorf(errType ErrorType, op, format string, args ...any) *Error {
	return &Error{Err: fmt.Errorf(format, args...), Op: op, Type: errType}
}

// ValidationError reports malformed task input for op.
func ValidationError(op, format string, args ...any) *Error {
	return Errorf(ErrorTypeValidation, op, format, args...)
}

// NotFoundError reports a missing entity for op.
func NotFoundError(op, format string, args ...any) *Error {
	return Errorf(ErrorTypeNotFound, op, format, args...)
}

// TypeOf extracts the classification from err. Unclassified errors map to
// ErrorTypeInternal.
func TypeOf(err error) ErrorType {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Type
	}
	return ErrorTypeInternal
}

// ErrUnknownAction indicates a task named an action the agent does not expose.
var ErrUnknownAction = errors.New("unknown action")
