package inspect

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestHashIsDeterministic(t *testing.T) {
	path := writeFile(t, "a.db", []byte("identical contents"))
	other := writeFile(t, "b.db", []byte("identical contents"))

	first, err := Hash(path)
	require.NoError(t, err)
	second, err := Hash(other)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "hex encoded 256-bit digest")
}

func TestHashDiffersOnContent(t *testing.T) {
	a, err := Hash(writeFile(t, "a.db", []byte("one")))
	require.NoError(t, err)
	b, err := Hash(writeFile(t, "b.db", []byte("two")))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashMissingFile(t *testing.T) {
	_, err := Hash(filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}

func TestWriteAndLoad(t *testing.T) {
	count := int64(12)
	data := Data{
		"fixtures": {
			Hash: "abc123",
			Size: 4096,
			Tables: map[string]TableData{
				"docs": {Count: count},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, data))

	path := writeFile(t, "inspect.json", buf.Bytes())
	loaded, err := Load(path)
	require.NoError(t, err)

	require.Contains(t, loaded, "fixtures")
	assert.Equal(t, "abc123", loaded["fixtures"].Hash)
	assert.EqualValues(t, 4096, loaded["fixtures"].Size)
	assert.Equal(t, count, loaded["fixtures"].Tables["docs"].Count)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeFile(t, "inspect.json", []byte("{not json"))
	_, err := Load(path)
	assert.Error(t, err)
}
