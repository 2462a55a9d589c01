// Package domainerrors defines the coded error type shared by services,
// stores and transports.
//
// Services return *Error values; transports translate the Code into a status
// with ToHTTPStatus. Infrastructure facts (not found, conflict) travel as
// sentinel errors from pkg/platform/sentinel and are translated at the
// service boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and transports.
type Code string

const (
	// Registry
	CodeInvalidDestination Code = "invalid_destination"
	CodeEmptyName          Code = "empty_name"
	CodeAlreadyExists      Code = "already_exists"
	CodeNotFound           Code = "not_found"
	CodeNameTaken          Code = "name_taken"
	CodeLengthMismatch     Code = "length_mismatch"

	// Routing
	CodeInactive       Code = "inactive"
	CodeEmptyDonation  Code = "empty_donation"
	CodeTransferFailed Code = "transfer_failed"
	CodeReentrant      Code = "reentrant"
	CodeOverflow       Code = "overflow"

	// Access
	CodeUnauthorized Code = "unauthorized"

	// Ambient
	CodeBadRequest         Code = "bad_request"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error. Message is safe to show to clients unless
// the code is CodeInternal.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code. This lets tests
// and callers write errors.Is(err, New(CodeNotFound, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the given code.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// ToHTTPStatus maps a code to the status a transport should answer with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidDestination, CodeEmptyName, CodeLengthMismatch, CodeEmptyDonation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeNameTaken, CodeReentrant, CodeInvariantViolation:
		return http.StatusConflict
	case CodeInactive, CodeOverflow:
		return http.StatusUnprocessableEntity
	case CodeTransferFailed:
		return http.StatusBadGateway
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
