// Package cli implements the recipe-admin command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tabishimam2/reciepe-app-api/internal/app"
	"github.com/tabishimam2/reciepe-app-api/internal/config"
	"github.com/tabishimam2/reciepe-app-api/internal/logging"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	// loadConfig is replaced in tests.
	loadConfig func(path string) (*config.Config, error)
}

// NewRootCommand creates the root command of recipe-admin.
func NewRootCommand(build BuildInfo) *cobra.Command {
	opts := &RootOptions{loadConfig: config.Load}
	return newRootCommand(opts, build)
}

func newRootCommand(opts *RootOptions, build BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "recipe-admin",
		Short:         "Administrative commands for the recipe API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newWaitForDBCommand(opts))
	cmd.AddCommand(newUserCommand(opts))
	cmd.AddCommand(newGCCommand(opts))
	cmd.AddCommand(newGenSecretCommand())
	cmd.AddCommand(newVersionCommand(build))

	return cmd
}

// env is the per-invocation state shared by the commands.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func (o *RootOptions) env(stderr io.Writer) (*env, error) {
	cfg, err := o.loadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Command output stays readable unless --verbose asks for the
	// configured logger at debug level.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	if o.Verbose {
		logCfg := cfg.Logging
		logCfg.Level = "debug"
		if logger, err = logging.New(logCfg); err != nil {
			return nil, err
		}
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// openApp waits for the database, migrates it when auto_migrate is set,
// and wires the services.
func (e *env) openApp(ctx context.Context) (*app.App, error) {
	db, err := app.WaitForDB(ctx, e.cfg.Database, e.logger)
	if err != nil {
		return nil, err
	}
	if e.cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	a, err := app.New(ctx, e.cfg, db, e.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func newVersionCommand(build BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recipe API Admin CLI\n")
			fmt.Fprintf(out, "Version: %s\n", build.Version)
			fmt.Fprintf(out, "Build Time: %s\n", build.BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", build.GitCommit)
			return nil
		},
	}
}
