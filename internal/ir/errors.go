package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures. A failed call's completion records its
// ErrorCode as the output case.
type ErrorCode string

const (
	// Core data-store errors.
	ErrUnsupportedType ErrorCode = "UnsupportedType"
	ErrEncoding        ErrorCode = "Encoding"
	ErrTableNotFound   ErrorCode = "TableNotFound"
	ErrRowNotFound     ErrorCode = "RowNotFound"
	ErrSchemaMismatch  ErrorCode = "SchemaMismatch"
	ErrInvalidName     ErrorCode = "InvalidName"
	ErrDuplicateTable  ErrorCode = "DuplicateTable"
	ErrUnauthorized    ErrorCode = "Unauthorized"

	// Provisioning and token errors, propagated unmodified.
	ErrPayment       ErrorCode = "Payment"
	ErrAllowance     ErrorCode = "Allowance"
	ErrBalance       ErrorCode = "Balance"
	ErrInvalidOwner  ErrorCode = "InvalidOwner"
	ErrDuplicateName ErrorCode = "DuplicateName"

	// Execution environment errors.
	ErrDatabaseNotFound ErrorCode = "DatabaseNotFound"
	ErrOutOfGas         ErrorCode = "OutOfGas"
	ErrUnknownAction    ErrorCode = "UnknownAction"
	ErrInvalidArgument  ErrorCode = "InvalidArgument"
	ErrInternal         ErrorCode = "Internal"
)

// Error is the single structured error type of the store, the factory and
// the engine. Details carries diagnostic context (indices, limits).
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With returns the error with one more detail attached.
func (e *Error) With(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, or "" when err carries none.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err (or anything it wraps) has the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
