package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a dispatch error category
type ErrorCode string

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status. Used by middleware.ErrorHandler.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrInvalidRequest, ErrInvalidAudience:
		return http.StatusBadRequest
	case ErrNoRecipients:
		return http.StatusUnprocessableEntity
	case ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrInvalidRequest   ErrorCode = "InvalidRequest"
	ErrInvalidAudience  ErrorCode = "InvalidAudience"
	ErrStoreUnavailable ErrorCode = "StoreUnavailable"
	ErrNoRecipients     ErrorCode = "NoRecipients"
	ErrNotFound         ErrorCode = "NotFound"
	ErrInternal         ErrorCode = "Internal"
)

// Error constructors
func InvalidRequest(message string) *AppError {
	return &AppError{Code: ErrInvalidRequest, Message: message}
}

func InvalidAudience(message string) *AppError {
	return &AppError{Code: ErrInvalidAudience, Message: message}
}

func StoreUnavailable(op string, err error) *AppError {
	return &AppError{
		Code:    ErrStoreUnavailable,
		Message: fmt.Sprintf("store unavailable during %s", op),
		Err:     err,
	}
}

func NoRecipients() *AppError {
	return &AppError{
		Code:    ErrNoRecipients,
		Message: "no recipients with contact information for the selected channels",
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As is re-exported so callers importing this package as errors keep errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
