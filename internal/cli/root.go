// Package cli provides the command-line interface for Quarry.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quarrylabs/quarry/internal/cli/commands"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry - read-only SQLite explorer",
		Long: `Quarry is a concurrency-safe access layer over SQLite database files.

It dispatches queries to a bounded worker pool, enforces per-query time
limits, truncates oversized result sets predictably, and derives schema
metadata (hidden tables, label columns, foreign keys, row counts) for the
databases it serves.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))

			ctx := commands.WithConfig(cmd.Context(), cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./quarry.yaml)")
	rootCmd.PersistentFlags().BoolP("immutable", "i", false, "treat database files as immutable snapshots")
	rootCmd.PersistentFlags().Int("workers", config.DefaultWorkers, "size of the SQL worker pool")
	rootCmd.PersistentFlags().Int("sql-time-limit-ms", config.DefaultSQLTimeLimitMs, "wall-clock limit per SQL statement (ms)")
	rootCmd.PersistentFlags().Int("max-returned-rows", config.DefaultMaxReturnedRows, "maximum rows returned by truncated queries")
	rootCmd.PersistentFlags().Int("page-size", config.DefaultPageSize, "default page size")
	rootCmd.PersistentFlags().String("metadata", "", "path to a metadata YAML file")
	rootCmd.PersistentFlags().String("inspect-file", "", "path to a precomputed inspect JSON file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(commands.NewInspectCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewTablesCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
