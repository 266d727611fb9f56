package auth

import (
	"time"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
)

// AuthType represents the type of authentication used in a request.
type AuthType int

const (
	// AuthTypeUnknown indicates an unrecognized auth scheme.
	AuthTypeUnknown AuthType = iota

	// AuthTypeAnonymous indicates no Authorization header.
	AuthTypeAnonymous

	// AuthTypeToken indicates "Authorization: Token <t>".
	AuthTypeToken

	// AuthTypeBearer indicates "Authorization: Bearer <t>".
	AuthTypeBearer
)

// String returns the string representation of the auth type.
func (at AuthType) String() string {
	switch at {
	case AuthTypeAnonymous:
		return "Anonymous"
	case AuthTypeToken:
		return "Token"
	case AuthTypeBearer:
		return "Bearer"
	default:
		return "Unknown"
	}
}

// AuthContext contains authentication information attached to a request.
// This is set by the auth middleware after successful authentication.
type AuthContext struct {
	// UserID is the authenticated user's ID.
	UserID int64

	// User is the authenticated user as loaded for this request.
	User *domain.User

	// AuthType is the scheme the client used.
	AuthType AuthType

	// IssuedAt is the iat claim of the presented token.
	IssuedAt time.Time
}

// authContextKey is the context key for AuthContext.
type authContextKey struct{}

// AuthContextKey is the key used to store AuthContext in request context.
var AuthContextKey = authContextKey{}
