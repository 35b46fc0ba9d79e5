// Package apperr defines the error taxonomy shared by the pipeline and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is the category of an application error.
type Type string

const (
	TypeValidation            Type = "validation"
	TypeNotFound              Type = "not_found"
	TypeProviderNotConfigured Type = "provider_not_configured"
	TypeProviderCall          Type = "provider_call"
	TypeResponseParse         Type = "response_parse"
	TypeStorage               Type = "storage"
	TypeInternal              Type = "internal"
)

// Error is a classified application error carrying its HTTP status.
type Error struct {
	Type       Type
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(t Type, status int, message string, cause error) *Error {
	return &Error{Type: t, Message: message, StatusCode: status, Cause: cause}
}

// Validation rejects bad input before any side effect.
func Validation(message string, cause error) *Error {
	return newError(TypeValidation, http.StatusBadRequest, message, cause)
}

// TooLarge is a validation error for payloads over the size limit.
func TooLarge(message string) *Error {
	return newError(TypeValidation, http.StatusRequestEntityTooLarge, message, nil)
}

func NotFound(message string) *Error {
	return newError(TypeNotFound, http.StatusNotFound, message, nil)
}

func ProviderNotConfigured() *Error {
	return newError(TypeProviderNotConfigured, http.StatusServiceUnavailable, "AI provider is not configured", nil)
}

func ProviderCall(message string, cause error) *Error {
	return newError(TypeProviderCall, http.StatusBadGateway, message, cause)
}

func ResponseParse(message string, cause error) *Error {
	return newError(TypeResponseParse, http.StatusBadGateway, message, cause)
}

func Storage(message string, cause error) *Error {
	return newError(TypeStorage, http.StatusInternalServerError, message, cause)
}

func Internal(message string, cause error) *Error {
	return newError(TypeInternal, http.StatusInternalServerError, message, cause)
}

// Is reports whether err is an *Error of the given type anywhere in its chain.
func Is(err error, t Type) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// StatusCode extracts the HTTP status code from an error.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// TypeOf returns the error type, or TypeInternal for unclassified errors.
func TypeOf(err error) Type {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return TypeInternal
}
