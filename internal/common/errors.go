package common

import (
	"errors"
	"fmt"
)

// Machine-readable error codes surfaced in API error payloads.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeConfig       = "CONFIG_ERROR"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Details any
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches structured context to the error payload.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NotFoundError names the missing resource and its identifier.
func NotFoundError(resource, id string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s with ID %s not found", resource, id), ErrNotFound)
}

func ValidationFailed(message string, details any) *AppError {
	return NewAppError(CodeValidation, message, ErrInvalidInput).WithDetails(details)
}

func BadRequest(message string, cause error) *AppError {
	return NewAppError(CodeBadRequest, message, errors.Join(ErrInvalidInput, cause))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
