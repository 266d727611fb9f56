// Package app assembles the recipe API from configuration: database,
// image store, services and HTTP router. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/auth"
	"github.com/tabishimam2/reciepe-app-api/internal/config"
	"github.com/tabishimam2/reciepe-app-api/internal/handler"
	"github.com/tabishimam2/reciepe-app-api/internal/metrics"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
	"github.com/tabishimam2/reciepe-app-api/internal/repository/postgres"
	"github.com/tabishimam2/reciepe-app-api/internal/repository/sqlite"
	"github.com/tabishimam2/reciepe-app-api/internal/service"
	"github.com/tabishimam2/reciepe-app-api/internal/storage"
)

// Database is an open SQL backend together with its repositories.
type Database interface {
	repository.Database
	Repositories() *repository.Repositories
}

var (
	_ Database = (*sqlite.DB)(nil)
	_ Database = (*postgres.DB)(nil)
)

// ErrDatabaseUnavailable is returned when the database did not answer
// within the configured wait timeout.
var ErrDatabaseUnavailable = errors.New("database unavailable")

// App holds the wired services of one process.
type App struct {
	Config      *config.Config
	DB          Database
	Images      storage.Backend
	Metrics     *metrics.Metrics
	Tokens      *auth.TokenService
	Users       *service.UserService
	Recipes     *service.RecipeService
	Tags        *service.LabelService
	Ingredients *service.LabelService

	limiter *handler.RateLimiter
	logger  zerolog.Logger
}

// OpenDatabase opens the configured database driver once.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (Database, error) {
	var (
		db  Database
		err error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = postgres.NewDB(ctx, cfg, logger)
	case config.DriverSQLite:
		db, err = sqlite.NewDB(ctx, sqliteConfig(cfg), logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

func sqliteConfig(cfg config.DatabaseConfig) sqlite.Config {
	sc := sqlite.DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		sc.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		sc.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.CacheSize != 0 {
		sc.CacheSize = cfg.CacheSize
	}
	if cfg.SynchronousMode != "" {
		sc.SynchronousMode = cfg.SynchronousMode
	}
	return sc
}

// WaitForDB opens the database, retrying every cfg.WaitInterval until it
// answers or cfg.WaitTimeout elapses.
func WaitForDB(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (Database, error) {
	return waitFor(ctx, cfg.WaitTimeout, cfg.WaitInterval, logger, func(ctx context.Context) (Database, error) {
		return OpenDatabase(ctx, cfg, logger)
	})
}

func waitFor(ctx context.Context, timeout, interval time.Duration, logger zerolog.Logger, open func(context.Context) (Database, error)) (Database, error) {
	if interval <= 0 {
		interval = time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		db, err := open(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("database available")
			}
			return db, nil
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("database unavailable, waiting")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrDatabaseUnavailable, attempt, err)
		case <-time.After(interval):
		}
	}
}

// OpenImages creates the configured image storage backend.
func OpenImages(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendS3:
		b, err := storage.NewS3Backend(ctx, cfg.S3, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendFilesystem:
		b, err := storage.NewFilesystemBackend(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// New wires the services over an already open database.
func New(ctx context.Context, cfg *config.Config, db Database, logger zerolog.Logger) (*App, error) {
	images, err := OpenImages(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open image storage: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	repos := db.Repositories()
	a := &App{
		Config:  cfg,
		DB:      db,
		Images:  images,
		Metrics: m,
		Tokens:  auth.NewTokenService(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, cfg.Auth.TokenIssuer),
		Users: service.NewUserService(repos.Users, service.UserServiceConfig{
			MinPasswordLength: cfg.Auth.MinPasswordLength,
			BcryptCost:        cfg.Auth.BcryptCost,
		}, logger),
		Recipes: service.NewRecipeService(repos, images, m, service.RecipeServiceConfig{
			MaxImageSize:   cfg.Storage.MaxImageSize,
			MaxImagePixels: cfg.Storage.MaxImagePixels,
		}, logger),
		Tags:        service.NewLabelService(repos.Tags, logger),
		Ingredients: service.NewLabelService(repos.Ingredients, logger),
		logger:      logger,
	}
	if cfg.RateLimit.Enabled {
		a.limiter = handler.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize, cfg.RateLimit.IdleTTL, logger)
	}
	return a, nil
}

// Handler returns the API handler.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(handler.RouterConfig{
		UserService:       a.Users,
		RecipeService:     a.Recipes,
		TagService:        a.Tags,
		IngredientService: a.Ingredients,
		Tokens:            a.Tokens,
		DB:                a.DB,
		Metrics:           a.Metrics,
		Limiter:           a.limiter,
		CORS:              a.Config.CORS,
		MaxBodySize:       a.Config.Server.MaxBodySize,
		Logger:            a.logger,
	}).Handler()
}

// MetricsServer returns the /metrics server, or nil when metrics are off.
func (a *App) MetricsServer() *http.Server {
	if a.Metrics == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(a.Config.Metrics.Path, a.Metrics.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// DeleteUser removes an account, its stored images first since the
// database cascade cannot reach the image store.
func (a *App) DeleteUser(ctx context.Context, userID int64) (int, error) {
	if _, err := a.Users.GetByID(ctx, userID); err != nil {
		return 0, err
	}
	removed, err := a.Recipes.PurgeOwnerImages(ctx, userID)
	if err != nil {
		return removed, err
	}
	return removed, a.Users.Delete(ctx, userID)
}

// NewGarbageCollector builds an orphan image collector from the gc
// settings. dryRun is combined with gc.dry_run.
func (a *App) NewGarbageCollector(dryRun bool) *service.GarbageCollector {
	return service.NewGarbageCollector(a.DB.Repositories().Recipes, a.Images, a.Metrics, service.GCConfig{
		GracePeriod: a.Config.GC.GracePeriod,
		BatchSize:   a.Config.GC.BatchSize,
		DryRun:      dryRun || a.Config.GC.DryRun,
	}, a.logger)
}

// Close stops background work and closes the database.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	return a.DB.Close()
}
