// Package apierror maps failures to HTTP status codes and the JSON error
// body shared by every endpoint.
package apierror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation             Kind = "validation_failure"
	KindConflict               Kind = "conflict"
	KindAuthenticationRequired Kind = "authentication_required"
	KindInvalidCredentials     Kind = "invalid_credentials"
	KindInvalidToken           Kind = "invalid_or_expired_token"
	KindNotFound               Kind = "not_found"
	KindResetTokenInvalid      Kind = "reset_token_invalid"
	KindInternal               Kind = "internal"
)

// Error is a client-facing failure. Err, when set, is logged but never sent.
type Error struct {
	Status  int
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Body is the JSON shape of an error response.
type Body struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Body() Body {
	return Body{Code: e.Kind, Message: e.Message, Details: e.Details}
}

func Validation(details any) *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindValidation, Message: "Invalid input", Details: details}
}

func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Kind: KindConflict, Message: msg}
}

func AuthenticationRequired() *Error {
	return &Error{Status: http.StatusUnauthorized, Kind: KindAuthenticationRequired, Message: "Authentication required"}
}

func InvalidCredentials() *Error {
	return &Error{Status: http.StatusUnauthorized, Kind: KindInvalidCredentials, Message: "Invalid credentials"}
}

func InvalidToken() *Error {
	return &Error{Status: http.StatusUnauthorized, Kind: KindInvalidToken, Message: "Invalid or expired token"}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

func ResetTokenInvalid() *Error {
	return &Error{Status: http.StatusBadRequest, Kind: KindResetTokenInvalid, Message: "Reset link is invalid or expired"}
}

func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Kind: KindInternal, Message: "Internal server error", Err: err}
}

// From returns err as an *Error, treating anything unrecognised as Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
