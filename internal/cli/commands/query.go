package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/quarrylabs/quarry/internal/database"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format     string
	TimeLimit  time.Duration
	NoTruncate bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query FILE [SQL]",
		Short: "Run read-only SQL against a database file",
		Long: `Execute a SQL statement against a database file through the worker
pool, under the configured time limit and row cap.

When invoked without SQL, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  quarry query fixtures.db "select * from docs"

  # Output as JSON
  quarry query fixtures.db "select count(*) from docs" --format json

  # Lower the time limit for this query only
  quarry query fixtures.db "select * from big" --time-limit 50ms

  # Interactive mode
  quarry query fixtures.db`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv")
	cmd.Flags().DurationVar(&opts.TimeLimit, "time-limit", 0, "per-query time limit (only honored below the global limit)")
	cmd.Flags().BoolVar(&opts.NoTruncate, "no-truncate", false, "fetch all rows instead of capping at max_returned_rows")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cctx.Close() }()

	db, err := cctx.OpenDatabase(args[0], false)
	if err != nil {
		return err
	}

	if len(args) < 2 {
		return runQueryREPL(cmd, db, opts)
	}

	return executeAndRender(cmd, db, args[1], opts)
}

func executeAndRender(cmd *cobra.Command, db *database.Database, query string, opts *QueryOptions) error {
	results, err := db.Execute(cmd.Context(), query, nil, database.ExecuteOptions{
		Truncate:  !opts.NoTruncate,
		TimeLimit: opts.TimeLimit,
	})
	var interrupted *database.QueryInterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("query exceeded its time limit: %s", interrupted.SQL)
	}
	if err != nil {
		return err
	}

	if err := renderResults(cmd.OutOrStdout(), results, opts.Format); err != nil {
		return err
	}
	if results.Truncated {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "(result truncated; more rows exist)")
	}
	return nil
}
