package auth

import (
	"errors"
	"net/http"
)

// Authentication errors.
var (
	// ErrMissingToken indicates the request carried no credentials.
	ErrMissingToken = errors.New("authentication credentials were not provided")

	// ErrInvalidAuthorizationHeader indicates the Authorization header is malformed.
	ErrInvalidAuthorizationHeader = errors.New("invalid token header")

	// ErrInvalidToken indicates a token that fails signature, expiry or issuer checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUserInactive indicates the token subject is disabled or deleted.
	ErrUserInactive = errors.New("user inactive or deleted")

	// ErrAccessDenied indicates the request is not authorized.
	ErrAccessDenied = errors.New("access denied")
)

// AuthError pairs an authentication failure with its HTTP status.
type AuthError struct {
	// Detail is the client-facing message.
	Detail string

	// HTTPStatus is the HTTP status code.
	HTTPStatus int

	err error
}

func (e *AuthError) Error() string {
	return e.Detail
}

func (e *AuthError) Unwrap() error {
	return e.err
}

// NewAuthError creates a new AuthError from a standard error.
func NewAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, ErrMissingToken):
		return &AuthError{Detail: "Authentication credentials were not provided.", HTTPStatus: http.StatusUnauthorized, err: err}
	case errors.Is(err, ErrInvalidAuthorizationHeader):
		return &AuthError{Detail: "Invalid token header.", HTTPStatus: http.StatusUnauthorized, err: err}
	case errors.Is(err, ErrInvalidToken):
		return &AuthError{Detail: "Invalid token.", HTTPStatus: http.StatusUnauthorized, err: err}
	case errors.Is(err, ErrUserInactive):
		return &AuthError{Detail: "User inactive or deleted.", HTTPStatus: http.StatusUnauthorized, err: err}
	default:
		return &AuthError{Detail: "You do not have permission to perform this action.", HTTPStatus: http.StatusForbidden, err: err}
	}
}
