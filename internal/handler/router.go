// Package handler provides the HTTP API of the recipe service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/auth"
	"github.com/tabishimam2/reciepe-app-api/internal/config"
	"github.com/tabishimam2/reciepe-app-api/internal/metrics"
	"github.com/tabishimam2/reciepe-app-api/internal/service"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router wires every API route onto a chi mux.
type Router struct {
	users       *UserHandler
	recipes     *RecipeHandler
	tags        *LabelHandler
	ingredients *LabelHandler
	tokens      *auth.TokenService
	userService *service.UserService
	db          Pinger
	metrics     *metrics.Metrics
	limiter     *RateLimiter
	cors        config.CORSConfig
	maxBodySize int64
	logger      zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	UserService       *service.UserService
	RecipeService     *service.RecipeService
	TagService        *service.LabelService
	IngredientService *service.LabelService
	Tokens            *auth.TokenService
	DB                Pinger

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Limiter may be nil to disable rate limiting.
	Limiter *RateLimiter

	CORS        config.CORSConfig
	MaxBodySize int64
	Logger      zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	v := NewValidator()
	return &Router{
		users:       NewUserHandler(cfg.UserService, cfg.Tokens, v, cfg.MaxBodySize, cfg.Logger),
		recipes:     NewRecipeHandler(cfg.RecipeService, v, cfg.MaxBodySize, cfg.Logger),
		tags:        NewLabelHandler(cfg.TagService, v, cfg.MaxBodySize, cfg.Logger),
		ingredients: NewLabelHandler(cfg.IngredientService, v, cfg.MaxBodySize, cfg.Logger),
		tokens:      cfg.Tokens,
		userService: cfg.UserService,
		db:          cfg.DB,
		metrics:     cfg.Metrics,
		limiter:     cfg.Limiter,
		cors:        cfg.CORS,
		maxBodySize: cfg.MaxBodySize,
		logger:      cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(rt.logger))
	r.Use(middleware.Recoverer)
	r.Use(observe(rt.metrics))
	if len(rt.cors.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cors.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         rt.cors.MaxAge,
		}))
	}
	if rt.limiter != nil {
		r.Use(rt.limiter.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, detailNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method \""+r.Method+"\" not allowed.")
	})

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	requireToken := auth.Middleware(rt.tokens, rt.userService, auth.Config{})

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/create", rt.users.Create)
		r.Post("/token", rt.users.Token)
		r.With(requireToken).Route("/me", rt.users.RegisterMeRoutes)
	})

	r.Route("/api/recipe", func(r chi.Router) {
		r.Use(requireToken)
		r.Route("/recipes", rt.recipes.RegisterRoutes)
		r.Route("/tags", rt.tags.RegisterRoutes)
		r.Route("/ingredients", rt.ingredients.RegisterRoutes)
	})

	return r
}

// handleHealth pings the database.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := rt.db.Ping(ctx); err != nil {
		rt.logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
