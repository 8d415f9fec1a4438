package commands

import (
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// TablesOptions holds options for the tables command.
type TablesOptions struct {
	Hidden     bool
	CountLimit time.Duration
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	opts := &TablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables FILE",
		Short: "List tables with row counts, label columns and hidden status",
		Example: `  # List visible tables
  quarry tables fixtures.db

  # Include hidden tables (FTS shadow tables, SpatiaLite internals, ...)
  quarry tables fixtures.db --hidden`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Hidden, "hidden", false, "include hidden tables")
	cmd.Flags().DurationVar(&opts.CountLimit, "count-limit", time.Second, "time limit per table count")

	return cmd
}

func runTables(cmd *cobra.Command, path string, opts *TablesOptions) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cctx.Close() }()

	db, err := cctx.OpenDatabase(path, false)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	names, err := db.TableNames(ctx)
	if err != nil {
		return err
	}
	hidden, err := db.HiddenTableNames(ctx)
	if err != nil {
		return err
	}
	counts, err := db.TableCounts(ctx, opts.CountLimit)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Rows", "Label Column", "Hidden"})

	for _, name := range names {
		isHidden := slices.Contains(hidden, name)
		if isHidden && !opts.Hidden {
			continue
		}

		count := "?"
		if c := counts[name]; c != nil {
			count = formatValue(*c)
		}

		label, err := db.LabelColumnForTable(ctx, name)
		if err != nil {
			return err
		}

		hiddenCell := ""
		if isHidden {
			hiddenCell = "yes"
		}

		t.AppendRow(table.Row{name, count, label, hiddenCell})
	}

	t.Render()
	return nil
}
