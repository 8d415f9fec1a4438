package commands

import (
	"strings"
	"testing"

	"github.com/quarrylabs/quarry/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *database.Results {
	return &database.Results{
		Columns: []string{"id", "name", "note"},
		Rows: [][]any{
			{int64(1), "alpha", nil},
			{int64(2), []byte("beta"), `comma, "quote"`},
		},
	}
}

func TestRenderTable(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderResults(&buf, sampleResults(), "table"))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows)")
}

func TestRenderTableEmpty(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderResults(&buf, &database.Results{Columns: []string{"id"}}, "table"))
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderResults(&buf, sampleResults(), "json"))

	out := buf.String()
	assert.Contains(t, out, `"name": "alpha"`)
	// Byte slices come out as strings, not base64.
	assert.Contains(t, out, `"name": "beta"`)
	assert.Contains(t, out, `"note": null`)
}

func TestRenderCSV(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, renderResults(&buf, sampleResults(), "csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,note", lines[0])
	assert.Equal(t, "1,alpha,NULL", lines[1])
	assert.Equal(t, `2,beta,"comma, ""quote"""`, lines[2])
}
