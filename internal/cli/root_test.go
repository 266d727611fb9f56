package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabishimam2/reciepe-app-api/internal/config"
)

func testOptions(t *testing.T) *RootOptions {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			Path:         filepath.Join(dir, "recipe.db"),
			WaitTimeout:  time.Second,
			WaitInterval: 10 * time.Millisecond,
			AutoMigrate:  true,
		},
		Storage: config.StorageConfig{
			Backend:      config.BackendFilesystem,
			DataDir:      filepath.Join(dir, "media"),
			MaxImageSize: 1 << 20,
		},
		Auth: config.AuthConfig{
			TokenSecret:       "0123456789abcdef0123456789abcdef",
			TokenTTL:          time.Hour,
			MinPasswordLength: 5,
			BcryptCost:        4,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
	}
	return &RootOptions{loadConfig: func(string) (*config.Config, error) { return cfg, nil }}
}

func run(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(opts, BuildInfo{Version: "1.2.3", BuildTime: "now", GitCommit: "abc"})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, testOptions(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1.2.3")
	assert.Contains(t, out, "Git Commit: abc")
}

func TestMigrateAndWait(t *testing.T) {
	opts := testOptions(t)

	out, err := run(t, opts, "wait-for-db")
	require.NoError(t, err)
	assert.Contains(t, out, "Database available!")

	out, err = run(t, opts, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied.")

	// Migrations are idempotent.
	_, err = run(t, opts, "migrate")
	require.NoError(t, err)
}

func TestUserLifecycle(t *testing.T) {
	opts := testOptions(t)

	out, err := run(t, opts, "user", "create", "--email", "cook@EXAMPLE.com", "--password", "testpass123", "--name", "Cook")
	require.NoError(t, err)
	assert.Contains(t, out, "<cook@example.com>")

	out, err = run(t, opts, "user", "create-superuser", "--email", "admin@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`Password: \S{20}`), out)

	_, err = run(t, opts, "user", "create", "--email", "cook@example.com", "--password", "testpass123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")

	_, err = run(t, opts, "user", "create")
	require.Error(t, err, "--email is required")

	out, err = run(t, opts, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "cook@example.com")
	assert.Contains(t, out, "admin@example.com")
	assert.Contains(t, out, "2 of 2 users")

	out, err = run(t, opts, "user", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted user 1")

	_, err = run(t, opts, "user", "delete", "1")
	assert.Error(t, err)

	_, err = run(t, opts, "user", "delete", "abc")
	assert.Error(t, err)

	out, err = run(t, opts, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 1 users")
}

func TestGC(t *testing.T) {
	opts := testOptions(t)

	out, err := run(t, opts, "gc", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 0 images")
	assert.Contains(t, out, "Would delete 0 orphan images")

	out, err = run(t, opts, "gc")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 orphan images (0 bytes)")
}

func TestGenSecret(t *testing.T) {
	out, err := run(t, testOptions(t), "gen-secret")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}\n$`), out)
}
