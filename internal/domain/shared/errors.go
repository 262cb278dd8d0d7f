package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by the ledger and the HTTP boundary
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeExpiredBatch        = "EXPIRED_BATCH"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeDuplicateKey        = "DUPLICATE_KEY"
	CodeValidation          = "VALIDATION_ERROR"
	CodeAlreadyReconciled   = "ALREADY_RECONCILED"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeUnauthorized        = "UNAUTHORIZED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so that a DomainError built
// with a specific message still matches its sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrExpiredBatch        = NewDomainError(CodeExpiredBatch, "Batch has expired")
	ErrInvalidQuantity     = NewDomainError(CodeInvalidQuantity, "Quantity must be greater than zero")
	ErrDuplicateKey        = NewDomainError(CodeDuplicateKey, "Unique identifier could not be generated")
	ErrValidation          = NewDomainError(CodeValidation, "Validation failed")
	ErrAlreadyReconciled   = NewDomainError(CodeAlreadyReconciled, "Count has already been reconciled")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
)

// LineError ties an error to a request line. Line is one-based.
type LineError struct {
	Line int
	Err  error
}

// Error implements the error interface
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err.Error())
}

// Unwrap exposes the underlying error to errors.Is / errors.As
func (e *LineError) Unwrap() error {
	return e.Err
}

// AtLine wraps err with the zero-based line index converted to a one-based line number.
// A nil error or an error already tied to a line is returned unchanged.
func AtLine(index int, err error) error {
	if err == nil {
		return nil
	}
	var le *LineError
	if errors.As(err, &le) {
		return err
	}
	return &LineError{Line: index + 1, Err: err}
}

// CodeOf returns the domain error code carried by err, or an empty string.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
