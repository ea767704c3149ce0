// Package errors provides error types and error codes shared by the
// relational store and the state store. It is a leaf package with no
// internal dependencies so both store implementations and the session
// layer can import it without cycles.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record or blob does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrAlreadyExists indicates the record already exists.
	ErrAlreadyExists

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument

	// ErrNameTooLong indicates a name exceeds its maximum length.
	ErrNameTooLong

	// ErrNameCollision indicates a sibling file or folder already carries
	// the requested name.
	ErrNameCollision

	// ErrAccessDenied indicates the caller lacks the required project role.
	ErrAccessDenied

	// ErrIOError indicates durable storage failed to read or write.
	ErrIOError
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrAlreadyExists:
		return "already exists"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrNameTooLong:
		return "name too long"
	case ErrNameCollision:
		return "name collision"
	case ErrAccessDenied:
		return "access denied"
	case ErrIOError:
		return "i/o error"
	default:
		return "unknown"
	}
}

// StoreError is the error type returned by store operations.
// Callers branch on Code rather than string-matching messages.
type StoreError struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is supports errors.Is comparisons against another *StoreError with the
// same code, so sentinel values like NewNotFound("") can be used as targets.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	return ok && t.Code == e.Code
}

// NewNotFound creates a StoreError for a missing record or blob.
func NewNotFound(what string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: what}
}

// NewAlreadyExists creates a StoreError for a duplicate record.
func NewAlreadyExists(what string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: what}
}

// NewInvalidArgument creates a StoreError for a rejected argument.
func NewInvalidArgument(msg string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: msg}
}

// NewNameCollision creates a StoreError for a sibling name conflict.
func NewNameCollision(name string) *StoreError {
	return &StoreError{Code: ErrNameCollision, Message: fmt.Sprintf("a file or folder named %q already exists", name)}
}

// NewAccessDenied creates a StoreError for a missing project role.
func NewAccessDenied(msg string) *StoreError {
	return &StoreError{Code: ErrAccessDenied, Message: msg}
}

// NewIO wraps a storage failure.
func NewIO(msg string, err error) *StoreError {
	return &StoreError{Code: ErrIOError, Message: msg, Err: err}
}

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	return HasCode(err, ErrNotFound)
}

// HasCode reports whether err is, or wraps, a StoreError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *StoreError
	if !stderrors.As(err, &se) {
		return false
	}
	return se.Code == code
}
