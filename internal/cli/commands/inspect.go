package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quarrylabs/quarry/internal/inspect"
	"github.com/spf13/cobra"
)

// InspectOptions holds options for the inspect command.
type InspectOptions struct {
	CountLimit time.Duration
	Output     string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect FILE [FILE...]",
		Short: "Precompute hash, size and table counts for database files",
		Long: `Inspect database files and emit a JSON snapshot of their content hash,
file size and per-table row counts.

The snapshot can later be passed via --inspect-file to seed the
table-count cache when the same files are registered as immutable.`,
		Example: `  # Inspect one database
  quarry inspect fixtures.db

  # Inspect several and write the snapshot to a file
  quarry inspect a.db b.db --output inspect.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.CountLimit, "count-limit", 10*time.Second, "time limit per table count")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the snapshot to a file instead of stdout")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string, opts *InspectOptions) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cctx.Close() }()

	data := inspect.Data{}
	for _, path := range args {
		// Hashing requires an immutable open regardless of config.
		db, err := cctx.OpenDatabase(path, true)
		if err != nil {
			return err
		}

		size, err := db.Size()
		if err != nil {
			return err
		}

		counts, err := db.TableCounts(cmd.Context(), opts.CountLimit)
		if err != nil {
			return err
		}

		tables := make(map[string]inspect.TableData, len(counts))
		for table, count := range counts {
			if count == nil {
				continue
			}
			tables[table] = inspect.TableData{Count: *count}
		}

		data[db.Name()] = inspect.DatabaseData{
			Hash:   db.Hash(),
			Size:   size,
			Tables: tables,
		}
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output) //nolint:gosec // G304: path is user supplied by design
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	return inspect.Write(out, data)
}
