// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Extraction errors (100-199): Locating and decoding the decision payload
//   - Validation errors (200-299): Semantically invalid decision fields
//   - Risk errors (300-399): Decisions rejected by the risk gate
//   - Ledger errors (400-499): Position state transition failures
//   - Account errors (500-599): Account aggregation and metric derivation
//   - Configuration errors (600-699): Invalid or incomplete configuration
//   - Audit errors (700-799): Audit log storage failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeNoObjectFound, "no JSON object in response")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeUnknownAsset, "asset %s is not tradable", asset)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeMalformedPayload, "failed to decode payload", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodePositionAlreadyOpen) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// FieldError represents a validation failure tied to a specific payload
// field. Callers need the field name and reason code for rejection
// analytics, so validation never reports a generic failure.
type FieldError struct {
	Field   string    // Payload field that failed validation
	Reason  ErrorCode // Reason code from the validation category
	Message string    // Human-readable message
}

// NewFieldError creates a new FieldError.
func NewFieldError(field string, reason ErrorCode, message string) *FieldError {
	return &FieldError{
		Field:   field,
		Reason:  reason,
		Message: message,
	}
}

// NewFieldErrorf creates a new FieldError with a formatted message.
func NewFieldErrorf(field string, reason ErrorCode, format string, args ...any) *FieldError {
	return &FieldError{
		Field:   field,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.Reason, e.Field, e.Message)
}

// IsFieldError checks if an error is a FieldError.
// It uses errors.As to check the error chain.
func IsFieldError(err error) bool {
	var fieldErr *FieldError

	return errors.As(err, &fieldErr)
}

// FieldOf returns the failing field name of a FieldError in err's chain,
// or the empty string when err carries no field information.
func FieldOf(err error) string {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Field
	}

	return ""
}

// ReasonOf returns the reason code of a FieldError in err's chain,
// falling back to GetCode for plain coded errors.
func ReasonOf(err error) ErrorCode {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Reason
	}

	return GetCode(err)
}
