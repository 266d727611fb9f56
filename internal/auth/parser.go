package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

// GetAuthType determines the authentication type from a request.
func GetAuthType(r *http.Request) AuthType {
	authHeader := r.Header.Get(AuthorizationHeader)
	if authHeader == "" {
		return AuthTypeAnonymous
	}

	scheme, _, _ := strings.Cut(authHeader, " ")
	switch {
	case strings.EqualFold(scheme, SchemeToken):
		return AuthTypeToken
	case strings.EqualFold(scheme, SchemeBearer):
		return AuthTypeBearer
	default:
		return AuthTypeUnknown
	}
}

// ParseAuthorization extracts the token from "Token <t>" or "Bearer <t>".
// The scheme is case-insensitive; exactly one token must follow it.
func ParseAuthorization(authHeader string) (string, error) {
	fields := strings.Fields(authHeader)
	if len(fields) == 0 {
		return "", ErrMissingToken
	}
	if !strings.EqualFold(fields[0], SchemeToken) && !strings.EqualFold(fields[0], SchemeBearer) {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidAuthorizationHeader, fields[0])
	}
	switch len(fields) {
	case 1:
		return "", fmt.Errorf("%w: no credentials provided", ErrInvalidAuthorizationHeader)
	case 2:
		return fields[1], nil
	default:
		return "", fmt.Errorf("%w: token string should not contain spaces", ErrInvalidAuthorizationHeader)
	}
}
