package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

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

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation, ErrInvalidToothNumber:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrConflict:
		return http.StatusConflict
	case ErrRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrUnauthorized
	ErrInvalidToothNumber
	ErrConflict
	ErrRemote
	ErrInternal
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func NewInvalidToothNumber(fdi int) *AppError {
	return &AppError{
		Code:    ErrInvalidToothNumber,
		Message: fmt.Sprintf("invalid tooth number %d", fdi),
	}
}

func NewConflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

// NewRemote wraps a transport or backend failure. Timeouts land here too.
func NewRemote(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrRemote,
		Message: fmt.Sprintf("remote call %s failed", operation),
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in the chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func IsNotFound(err error) bool   { return err != nil && CodeOf(err) == ErrNotFound }
func IsValidation(err error) bool { return err != nil && CodeOf(err) == ErrValidation }
func IsConflict(err error) bool   { return err != nil && CodeOf(err) == ErrConflict }
func IsRemote(err error) bool     { return err != nil && CodeOf(err) == ErrRemote }

func IsInvalidToothNumber(err error) bool {
	return err != nil && CodeOf(err) == ErrInvalidToothNumber
}

// WrapRemote keeps classified errors as they are and turns anything else
// (transport, driver, context deadline) into a Remote error.
func WrapRemote(operation string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return NewRemote(operation, err)
}
