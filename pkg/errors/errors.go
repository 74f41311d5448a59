package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeAccessDenied ErrorType = "ACCESS_DENIED"
	ErrorTypeAgentBusy    ErrorType = "AGENT_BUSY"
	ErrorTypeTimeout      ErrorType = "TIMEOUT"
	ErrorTypeExternal     ErrorType = "EXTERNAL"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewAccessDenied creates an access denied error
func NewAccessDenied(message string) error {
	return &AppError{Type: ErrorTypeAccessDenied, Message: message}
}

// NewAgentBusy creates an agent busy error for concurrent-run conflicts
func NewAgentBusy(message string) error {
	return &AppError{Type: ErrorTypeAgentBusy, Message: message}
}

// NewTimeout creates a timeout error
func NewTimeout(message string) error {
	return &AppError{Type: ErrorTypeTimeout, Message: message}
}

// NewExternal creates an external service error
func NewExternal(message string) error {
	return &AppError{Type: ErrorTypeExternal, Message: message}
}

// NewInternal creates an internal error
func NewInternal(message string) error {
	return &AppError{Type: ErrorTypeInternal, Message: message}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	// Otherwise, create an internal error
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// TypeOf returns the error type, or ErrorTypeInternal for unknown errors
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Type checking functions

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return TypeOf(err) == ErrorTypeValidation }

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsAccessDenied checks if an error is an access denied error
func IsAccessDenied(err error) bool { return TypeOf(err) == ErrorTypeAccessDenied }

// IsAgentBusy checks if an error is an agent busy error
func IsAgentBusy(err error) bool { return TypeOf(err) == ErrorTypeAgentBusy }

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool { return TypeOf(err) == ErrorTypeTimeout }

// IsExternal checks if an error is an external service error
func IsExternal(err error) bool { return TypeOf(err) == ErrorTypeExternal }

// IsRetryable reports whether the orchestrator may automatically retry
// the failed dispatch. Only transient channel failures and deadline
// expiries qualify; validation, ownership and busy conflicts never do.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeExternal, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}
