package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/quarrylabs/quarry/internal/database"
	"github.com/spf13/cobra"
)

func runQueryREPL(cmd *cobra.Command, db *database.Database, opts *QueryOptions) error {
	ctx := cmd.Context()

	// History lives next to the database file. Memory databases get none.
	historyFile := ""
	if !db.IsMemory() {
		historyFile = filepath.Join(filepath.Dir(db.Path()), ".quarry_history")
	}

	completer := newTableCompleter(ctx, db)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "quarry> ",
		HistoryFile:     historyFile,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Quarry Query REPL (%s)\n", db)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt("quarry> ")
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Handle dot-commands
		if strings.HasPrefix(line, ".") {
			if handled := handleDotCommand(ctx, cmd, db, line); handled {
				if line == ".quit" || line == ".exit" {
					break
				}
				continue
			}
		}

		// Accumulate multi-line SQL until semicolon
		multiLineBuffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			multiLineBuffer.WriteString(" ")
			rl.SetPrompt("   ...> ")
			continue
		}
		rl.SetPrompt("quarry> ")

		query := strings.TrimSuffix(multiLineBuffer.String(), ";")
		multiLineBuffer.Reset()

		if err := executeAndRender(cmd, db, query, opts); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

func handleDotCommand(ctx context.Context, cmd *cobra.Command, db *database.Database, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(cmd.OutOrStdout())
		return true

	case ".tables":
		if err := printNames(ctx, cmd.OutOrStdout(), db.TableNames); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return true

	case ".views":
		if err := printNames(ctx, cmd.OutOrStdout(), db.ViewNames); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return true

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Usage: .schema <table>")
			return true
		}
		if err := printDefinition(ctx, cmd.OutOrStdout(), db, parts[1]); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return true

	case ".clear":
		fmt.Print("\033[H\033[2J")
		return true

	default:
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s (type .help for commands)\n", command)
		return true
	}
}

func printNames(ctx context.Context, w io.Writer, fetch func(context.Context) ([]string, error)) error {
	names, err := fetch(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		_, _ = fmt.Fprintln(w, name)
	}
	return nil
}

func printDefinition(ctx context.Context, w io.Writer, db *database.Database, name string) error {
	definition, err := db.TableDefinition(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		definition, err = db.ViewDefinition(ctx, name)
	}
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no table or view named %q", name)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, definition)
	return nil
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .tables         List tables
  .views          List views
  .schema <name>  Show the SQL definition of a table or view
  .clear          Clear the screen
  .quit / .exit   Exit the REPL

Tips:
  - SQL statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter creates a readline completer for table and view names.
func newTableCompleter(ctx context.Context, db *database.Database) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	for _, fetch := range []func(context.Context) ([]string, error){db.TableNames, db.ViewNames} {
		names, err := fetch(ctx)
		if err != nil {
			// Autocomplete is best-effort
			continue
		}
		for _, name := range names {
			items = append(items, readline.PcItem(name))
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".views"),
		readline.PcItem(".schema"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
