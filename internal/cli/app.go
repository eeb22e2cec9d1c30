package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/shelf/internal/config"
	"github.com/randalmurphal/shelf/internal/core"
	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// app is what a command needs to run operations.
type app struct {
	cfg    *config.Config
	store  *db.DB
	svc    *core.Service
	logger *slog.Logger
	out    io.Writer
}

// loadConfig returns the merged, validated configuration.
func loadConfig() (*config.Config, error) {
	tc, err := config.LoadWithSources()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := tc.Config
	if cfgFile != "" {
		if cfg, err = config.LoadFrom(cfgFile); err != nil {
			return nil, err
		}
	}
	if u := viper.GetString("user"); u != "" {
		cfg.User = u
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the slog handler named by the logging config.
func newLogger(w io.Writer, lc config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func openApp(cmd *cobra.Command) (*app, error) {
	if err := config.RequireInit(); err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging, verbose)

	dialect, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	store, err := db.OpenWithDialect(cfg.DSN(), dialect)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{
		cfg:    cfg,
		store:  store,
		svc:    core.New(store, logger),
		logger: logger,
		out:    cmd.OutOrStdout(),
	}, nil
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.store.Close(); cerr != nil {
			a.logger.Warn("close store", "error", cerr)
		}
	}()
	return fn(cmd.Context(), a)
}

// currentUser resolves the acting user from --user, SHELF_USER or the config.
func (a *app) currentUser(ctx context.Context) (*db.User, error) {
	if a.cfg.User == "" {
		return nil, shelferrors.ErrConfigMissing("user")
	}
	return a.svc.UserByName(ctx, a.cfg.User)
}

// emit writes v as JSON under --json, or runs text otherwise.
func (a *app) emit(v any, text func(w io.Writer)) error {
	if jsonOut {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(a.out)
	return nil
}
