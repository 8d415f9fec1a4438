// Package metadata loads externally supplied database and table metadata:
// per-table label column overrides and hidden flags. The file format is
// YAML, keyed by database name, then table name.
package metadata

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Table holds host-supplied configuration for a single table.
type Table struct {
	// Hidden flags the table as hidden from normal listings.
	Hidden bool `koanf:"hidden"`

	// LabelColumn overrides label column detection for the table.
	LabelColumn string `koanf:"label_column"`
}

// Database holds host-supplied configuration for a single database.
type Database struct {
	Tables map[string]Table `koanf:"tables"`
}

// Metadata is the root of a metadata file.
type Metadata struct {
	Databases map[string]Database `koanf:"databases"`
}

// Load reads a metadata YAML file.
func Load(path string) (*Metadata, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading metadata file %s: %w", path, err)
	}

	var m Metadata
	if err := k.Unmarshal("", &m); err != nil {
		return nil, fmt.Errorf("unable to decode metadata: %w", err)
	}
	return &m, nil
}

// ForDatabase returns the metadata for a database.
// A nil receiver or unknown database yields the zero value.
func (m *Metadata) ForDatabase(database string) Database {
	if m == nil {
		return Database{}
	}
	return m.Databases[database]
}

// ForTable returns the metadata for a table within a database.
func (m *Metadata) ForTable(database, table string) Table {
	return m.ForDatabase(database).Tables[table]
}
