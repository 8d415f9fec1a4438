// Package config provides configuration types and loading for Quarry.
package config

import (
	"fmt"
	"time"
)

// Default configuration values. Time limits are in milliseconds.
const (
	DefaultSQLTimeLimitMs  = 1000
	DefaultMaxReturnedRows = 1000
	DefaultPageSize        = 100
	DefaultWorkers         = 3
)

// Config holds all runtime configuration options.
type Config struct {
	// SQLTimeLimitMs is the global wall-clock limit for a single SQL
	// statement, in milliseconds.
	SQLTimeLimitMs int `koanf:"sql_time_limit_ms"`

	// MaxReturnedRows caps the rows returned by truncated queries.
	MaxReturnedRows int `koanf:"max_returned_rows"`

	// PageSize is the default page size consumers paginate with.
	PageSize int `koanf:"page_size"`

	// Workers is the size of the shared SQL worker pool.
	Workers int `koanf:"workers"`

	// MetadataPath points at an optional metadata YAML file with
	// per-table label columns and hidden flags.
	MetadataPath string `koanf:"metadata"`

	// InspectPath points at an optional precomputed inspect JSON file
	// used to seed table-count caches for immutable databases.
	InspectPath string `koanf:"inspect_file"`

	// Immutable marks registered database files as immutable snapshots.
	Immutable bool `koanf:"immutable"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
}

// SQLTimeLimit returns the global statement time limit as a duration.
func (c *Config) SQLTimeLimit() time.Duration {
	return time.Duration(c.SQLTimeLimitMs) * time.Millisecond
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SQLTimeLimitMs <= 0 {
		return fmt.Errorf("sql_time_limit_ms must be positive, got %d", c.SQLTimeLimitMs)
	}
	if c.MaxReturnedRows < 0 {
		return fmt.Errorf("max_returned_rows must not be negative, got %d", c.MaxReturnedRows)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Default returns a Config populated with the default values.
func Default() *Config {
	return &Config{
		SQLTimeLimitMs:  DefaultSQLTimeLimitMs,
		MaxReturnedRows: DefaultMaxReturnedRows,
		PageSize:        DefaultPageSize,
		Workers:         DefaultWorkers,
	}
}
