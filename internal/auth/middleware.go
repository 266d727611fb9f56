package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
)

// UserLoader resolves the subject of a validated token.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// TokenValidator validates a raw token string.
type TokenValidator interface {
	Validate(tokenString string) (*Claims, error)
}

// Config contains configuration for the auth middleware.
type Config struct {
	// SkipPaths are paths that skip authentication.
	SkipPaths []string
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		SkipPaths: []string{"/health"},
	}
}

// Middleware creates an authentication middleware. Requests without a valid
// token for an active user are rejected with 401.
func Middleware(tokens TokenValidator, users UserLoader, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			authCtx, err := authenticate(r, tokens, users)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token authentication failed")
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

func authenticate(r *http.Request, tokens TokenValidator, users UserLoader) (*AuthContext, error) {
	authType := GetAuthType(r)
	switch authType {
	case AuthTypeAnonymous:
		return nil, ErrMissingToken
	case AuthTypeToken, AuthTypeBearer:
	default:
		return nil, ErrInvalidAuthorizationHeader
	}

	raw, err := ParseAuthorization(r.Header.Get(AuthorizationHeader))
	if err != nil {
		return nil, err
	}

	claims, err := tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserInactive
		}
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, ErrUserInactive
	}

	authCtx := &AuthContext{
		UserID:   user.ID,
		User:     user,
		AuthType: authType,
	}
	if claims.IssuedAt != nil {
		authCtx.IssuedAt = claims.IssuedAt.Time
	}
	return authCtx, nil
}

// writeAuthError writes a {"detail": ...} error body.
func writeAuthError(w http.ResponseWriter, err error) {
	authErr := NewAuthError(err)
	if authErr.HTTPStatus == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", SchemeToken)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": authErr.Detail})
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// WithAuthContext returns a copy of ctx carrying authCtx.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// RequireAuth is a helper to get auth context or return error.
func RequireAuth(ctx context.Context) (*AuthContext, error) {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil {
		return nil, ErrAccessDenied
	}
	return authCtx, nil
}
