package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabishimam2/reciepe-app-api/internal/config"
	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/service"
	"github.com/tabishimam2/reciepe-app-api/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8000, MaxBodySize: 1 << 20},
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			Path:         filepath.Join(dir, "recipe.db"),
			WaitTimeout:  time.Second,
			WaitInterval: 10 * time.Millisecond,
		},
		Storage: config.StorageConfig{
			Backend:      config.BackendFilesystem,
			DataDir:      filepath.Join(dir, "media"),
			MaxImageSize: 1 << 20,
		},
		Auth: config.AuthConfig{
			TokenSecret:       "0123456789abcdef0123456789abcdef",
			TokenTTL:          time.Hour,
			TokenIssuer:       "recipe-test",
			MinPasswordLength: 5,
			BcryptCost:        4,
		},
		Metrics:   config.MetricsConfig{Enabled: true, Port: 9091, Path: "/metrics"},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 100, BurstSize: 100, IdleTTL: time.Minute},
		GC:        config.GCConfig{GracePeriod: time.Hour, BatchSize: 100},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig(t)

	db, err := WaitForDB(ctx, cfg.Database, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	a, err := New(ctx, cfg, db, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApp_HandlerServesHealth(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	srv := a.MetricsServer()
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:9091", srv.Addr)
}

func TestApp_MetricsDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false

	db, err := OpenDatabase(ctx, cfg.Database, zerolog.Nop())
	require.NoError(t, err)
	a, err := New(ctx, cfg, db, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Metrics)
	assert.Nil(t, a.MetricsServer())
}

func TestApp_DeleteUserPurgesImages(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	out, err := a.Users.CreateAccount(ctx, service.CreateAccountInput{Email: "cook@example.com", Password: "testpass123"})
	require.NoError(t, err)

	_, err = a.DeleteUser(ctx, out.User.ID)
	require.NoError(t, err)

	_, err = a.Users.GetByID(ctx, out.User.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = a.DeleteUser(ctx, out.User.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApp_GarbageCollector(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	key := storage.NewRecipeImageKey("png")
	require.NoError(t, a.Images.Put(ctx, key, strings.NewReader("data"), 4, "image/png"))

	// The image is younger than the grace period.
	result, err := a.NewGarbageCollector(false).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Zero(t, result.ImagesDeleted)

	a.Config.GC.GracePeriod = 0
	result, err = a.NewGarbageCollector(true).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImagesDeleted)

	exists, err := a.Images.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists, "dry run keeps the file")
}

func TestOpenDatabase_UnknownDriver(t *testing.T) {
	_, err := OpenDatabase(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = OpenImages(context.Background(), config.StorageConfig{Backend: "tape"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestWaitFor(t *testing.T) {
	t.Run("retries until available", func(t *testing.T) {
		calls := 0
		db, err := waitFor(context.Background(), time.Second, time.Millisecond, zerolog.Nop(), func(context.Context) (Database, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("connection refused")
			}
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, db)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after timeout", func(t *testing.T) {
		_, err := waitFor(context.Background(), 20*time.Millisecond, 5*time.Millisecond, zerolog.Nop(), func(context.Context) (Database, error) {
			return nil, errors.New("connection refused")
		})
		assert.ErrorIs(t, err, ErrDatabaseUnavailable)
	})
}
