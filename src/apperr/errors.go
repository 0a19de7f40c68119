// Package apperr holds the error taxonomy shared by the API, the client and the views.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine readable part of an error, sent to clients as "code".
type Code string

const (
	CodeDuplicateRequest       Code = "DUPLICATE_REQUEST"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeNotFound               Code = "NOT_FOUND"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeValidation             Code = "VALIDATION_FAILED"
	CodeNetworkFailure         Code = "NETWORK_FAILURE"
	CodeInternal               Code = "INTERNAL"
)

// DefaultMessage is shown when the server gives no message of its own.
const DefaultMessage = "Something went wrong. Please try again."

// Error is an application error scoped to the single action that produced it.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an error with the HTTP status that belongs to code.
func New(code Code, message string) *Error {
	if message == "" {
		message = DefaultMessage
	}
	return &Error{Code: code, Message: message, Status: StatusFor(code)}
}

// Wrap is New with an underlying cause kept for logs.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

func DuplicateRequest(message string) *Error {
	return New(CodeDuplicateRequest, message)
}

func InvalidStateTransition(message string) *Error {
	return New(CodeInvalidStateTransition, message)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func NetworkFailure(cause error) *Error {
	return Wrap(CodeNetworkFailure, "Network error. Check your connection and try again.", cause)
}

func Internal(cause error) *Error {
	return Wrap(CodeInternal, "Server error", cause)
}

// StatusFor maps a code to the HTTP status the API answers with.
func StatusFor(code Code) int {
	switch code {
	case CodeDuplicateRequest, CodeInvalidStateTransition:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNetworkFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return DefaultMessage
}
