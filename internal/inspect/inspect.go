// Package inspect computes and loads precomputed database snapshots: the
// content hash and size of a database file plus per-table row counts.
// A snapshot written by `quarry inspect` can be fed back at registration
// time to seed the table-count cache for immutable databases.
package inspect

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// TableData holds snapshot facts about a single table.
type TableData struct {
	Count int64 `json:"count"`
}

// DatabaseData holds snapshot facts about a single database file.
type DatabaseData struct {
	Hash   string               `json:"hash"`
	Size   int64                `json:"size"`
	Tables map[string]TableData `json:"tables"`
}

// Data maps database names to their snapshot facts.
type Data map[string]DatabaseData

// Hash returns the hex BLAKE3 digest of the file's full contents.
func Hash(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is from trusted source
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load reads a precomputed inspect file.
func Load(path string) (Data, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path is from trusted source
	if err != nil {
		return nil, fmt.Errorf("error reading inspect file %s: %w", path, err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unable to decode inspect file %s: %w", path, err)
	}
	return data, nil
}

// Write writes the snapshot as indented JSON.
func Write(w io.Writer, data Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
