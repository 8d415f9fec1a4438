package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/quarrylabs/quarry/internal/database"
)

func renderResults(w io.Writer, results *database.Results, format string) error {
	switch format {
	case "json":
		return renderJSON(w, results)
	case "csv":
		return renderCSV(w, results)
	default:
		return renderTable(w, results)
	}
}

func renderTable(w io.Writer, results *database.Results) error {
	if len(results.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(results.Columns))
	for i, col := range results.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, row := range results.Rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = formatValue(v)
		}
		t.AppendRow(out)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(results.Rows))
	return nil
}

func renderJSON(w io.Writer, results *database.Results) error {
	rows := make([]map[string]any, 0, len(results.Rows))
	for _, row := range results.Rows {
		out := make(map[string]any, len(results.Columns))
		for i, col := range results.Columns {
			out[col] = normalizeValue(row[i])
		}
		rows = append(rows, out)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func renderCSV(w io.Writer, results *database.Results) error {
	_, _ = fmt.Fprintln(w, strings.Join(results.Columns, ","))

	for _, row := range results.Rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = escapeCSV(formatValue(v))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

// normalizeValue converts []byte column values to strings for readability.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", normalizeValue(v))
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
