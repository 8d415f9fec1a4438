// Package commands implements the quarry subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/database"
	"github.com/quarrylabs/quarry/internal/inspect"
	"github.com/quarrylabs/quarry/internal/metadata"
	"github.com/quarrylabs/quarry/internal/pool"
	"github.com/quarrylabs/quarry/internal/trace"
	"github.com/spf13/cobra"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// WithConfig stores the loaded config in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// ConfigFromContext retrieves the config from the context, falling back to
// the defaults.
func ConfigFromContext(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return config.Default()
}

// LoggerFromContext retrieves the logger from the context, falling back to
// a discard logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext carries the assembled application state for one command
// invocation: config, logger, the shared worker pool, and optional
// metadata and inspect data.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Pool    *pool.Pool
	Meta    *metadata.Metadata
	Inspect inspect.Data
}

// NewCommandContext assembles the application state for a command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := ConfigFromContext(cmd.Context())
	logger := LoggerFromContext(cmd.Context())

	cctx := &CommandContext{
		Cfg:    cfg,
		Logger: logger,
		Pool:   pool.New(cfg.Workers, logger),
	}

	if cfg.MetadataPath != "" {
		meta, err := metadata.Load(cfg.MetadataPath)
		if err != nil {
			_ = cctx.Close()
			return nil, err
		}
		cctx.Meta = meta
	}

	if cfg.InspectPath != "" {
		data, err := inspect.Load(cfg.InspectPath)
		if err != nil {
			_ = cctx.Close()
			return nil, err
		}
		cctx.Inspect = data
	}

	return cctx, nil
}

// Close shuts the worker pool down, closing all worker-owned connections.
func (c *CommandContext) Close() error {
	return c.Pool.Close()
}

// OpenDatabase registers a database file with the shared pool. Mutability
// follows the config unless forceImmutable is set.
func (c *CommandContext) OpenDatabase(path string, forceImmutable bool) (*database.Database, error) {
	return database.New(database.Options{
		Path:    path,
		Mutable: !c.Cfg.Immutable && !forceImmutable,
		Pool:    c.Pool,
		Limits: database.Limits{
			SQLTimeLimit:    c.Cfg.SQLTimeLimit(),
			MaxReturnedRows: c.Cfg.MaxReturnedRows,
			PageSize:        c.Cfg.PageSize,
		},
		Metadata:    c.Meta,
		InspectData: c.Inspect,
		Tracer:      trace.NewSlogTracer(c.Logger),
		Logger:      c.Logger,
	})
}
