// Package appctx opens what a command needs: config, logger and store.
package appctx

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskman/internal/config"
	"taskman/internal/logging"
	"taskman/internal/storage"
)

type App struct {
	Config     config.Config
	ConfigPath string
	Log        *zap.Logger
	Store      *storage.Store
}

// Close releases the store and flushes the log. Safe to call twice.
func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
		a.Store = nil
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
}

type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps fn with Bootstrap and closes the App when fn returns.
func WithApp(fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(app, cmd, args)
	}
}

// Bootstrap loads .env and the config file, applies --config and --db,
// and opens the logger and the database.
func Bootstrap(cmd *cobra.Command) (*App, error) {
	config.LoadDotEnv()

	app := &App{ConfigPath: flagValue(cmd, "config")}
	if app.ConfigPath == "" {
		app.ConfigPath = config.ResolveConfigPath()
	}
	cfg, err := config.LoadOrCreate(app.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if db := flagValue(cmd, "db"); db != "" {
		cfg.DBPath = db
	}
	app.Config = cfg

	app.Log, err = logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	app.Store, err = storage.Open(cfg.DBPath, app.Log)
	if err != nil {
		_ = app.Log.Sync()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.Log.Debug("command started", zap.String("command", cmd.CommandPath()), zap.String("db", cfg.DBPath))
	return app, nil
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
