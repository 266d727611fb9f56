// Package auth provides token authentication for the recipe API.
package auth

const (
	// AuthorizationHeader is the HTTP header carrying the API token.
	AuthorizationHeader = "Authorization"

	// SchemeToken is the scheme issued by the token endpoint.
	SchemeToken = "Token"

	// SchemeBearer is accepted as an alias of SchemeToken.
	SchemeBearer = "Bearer"
)
