package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/auth"
	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/service"
)

const msgBadCredentials = "Unable to authenticate with provided credentials."

// UserHandler serves account creation, token issuance and the caller's own
// profile.
type UserHandler struct {
	users       *service.UserService
	tokens      *auth.TokenService
	validator   *Validator
	maxBodySize int64
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, tokens *auth.TokenService, v *Validator, maxBodySize int64, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:       users,
		tokens:      tokens,
		validator:   v,
		maxBodySize: maxBodySize,
		logger:      logger.With().Str("handler", "user").Logger(),
	}
}

// RegisterMeRoutes registers the profile routes. Callers mount them behind
// the token middleware.
func (h *UserHandler) RegisterMeRoutes(r chi.Router) {
	r.Get("/", h.Me)
	r.Put("/", h.UpdateMe)
	r.Patch("/", h.UpdateMe)
}

// Create handles POST /api/user/create.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out, err := h.users.CreateAccount(r.Context(), service.CreateAccountInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(out.User))
}

// Token handles POST /api/user/token.
func (h *UserHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUserInactive) {
			writeError(w, r, h.logger, domain.NewValidationError(domain.NonFieldErrors, msgBadCredentials))
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	token, _, err := h.tokens.Generate(user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// Me handles GET /api/user/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, auth.NewAuthError(auth.ErrMissingToken).Detail)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(authCtx.User))
}

// UpdateMe handles PUT and PATCH /api/user/me.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, auth.NewAuthError(auth.ErrMissingToken).Detail)
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if r.Method == http.MethodPut {
		if err := requireFields(req.missing()); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	user, err := h.users.UpdateProfile(r.Context(), service.UpdateProfileInput{
		UserID:   authCtx.UserID,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// requireFields reports every missing field of a full write.
func requireFields(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	verr := &domain.ValidationError{}
	for _, f := range missing {
		verr.Add(f, "This field is required.")
	}
	return verr
}
