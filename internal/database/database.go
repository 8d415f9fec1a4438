// Package database implements the concurrency-safe access layer over
// embedded SQLite files: a per-worker connection affinity pool, a
// time-limited executor with result truncation, schema introspection and
// construction-time metadata caching.
//
// A Database handle is read-only by construction. Immutable handles are
// assumed byte-identical for the process lifetime, which permits caching
// the content hash, file size and table counts once, at registration.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/quarrylabs/quarry/internal/inspect"
	"github.com/quarrylabs/quarry/internal/metadata"
	"github.com/quarrylabs/quarry/internal/pool"
	"github.com/quarrylabs/quarry/internal/trace"

	// SQLite driver (pure Go)
	_ "modernc.org/sqlite"
)

// MemoryName is the name reported by in-memory databases.
const MemoryName = ":memory:"

// PrepareFunc is invoked exactly once per newly created connection, before
// its first use. Hosts use it to load extensions or set pragmas.
type PrepareFunc func(ctx context.Context, conn *sql.Conn, database string) error

// Limits carries the execution limits shared by all databases.
type Limits struct {
	// SQLTimeLimit is the global wall-clock limit per statement.
	SQLTimeLimit time.Duration
	// MaxReturnedRows caps the rows returned by truncated queries.
	// Zero disables truncation.
	MaxReturnedRows int
	// PageSize is the default page size consumers paginate with.
	PageSize int
}

// Options configures a Database handle.
type Options struct {
	// Path is the database file path. Ignored for memory databases.
	Path string
	// Mutable marks a file database as subject to change; mutable handles
	// never cache hash, size or counts.
	Mutable bool
	// Memory opens an ephemeral in-memory instance instead of a file.
	Memory bool
	// Pool is the shared worker pool. Required.
	Pool *pool.Pool
	// Limits are the execution limits.
	Limits Limits
	// Prepare is the optional connection preparation hook.
	Prepare PrepareFunc
	// Metadata supplies per-table label columns and hidden flags.
	Metadata *metadata.Metadata
	// InspectData optionally seeds the table-count cache for immutable
	// databases.
	InspectData inspect.Data
	// Tracer receives an event around each execution. Optional.
	Tracer trace.Tracer
	// Logger is the structured logger (uses discard if nil).
	Logger *slog.Logger
}

// Database is a named handle over a single SQLite file or memory instance.
// It is safe for concurrent use; all native access happens on pool workers.
type Database struct {
	name    string
	path    string
	mutable bool
	memory  bool

	// Populated at construction for immutable file databases only.
	hash       string
	cachedSize int64

	pool    *pool.Pool
	limits  Limits
	prepare PrepareFunc
	meta    *metadata.Metadata
	tracer  trace.Tracer
	logger  *slog.Logger

	openOnce sync.Once
	openErr  error
	db       *sql.DB

	countsMu     sync.Mutex
	cachedCounts map[string]*int64
}

// New registers a database and, for immutable file databases, computes the
// content hash and size up front. These are never recomputed for the life
// of the handle.
func New(opts Options) (*Database, error) {
	if opts.Pool == nil {
		return nil, fmt.Errorf("database: pool is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop()
	}

	d := &Database{
		path:    opts.Path,
		mutable: opts.Mutable,
		memory:  opts.Memory,
		pool:    opts.Pool,
		limits:  opts.Limits,
		prepare: opts.Prepare,
		meta:    opts.Metadata,
		tracer:  tracer,
		logger:  logger,
	}

	if opts.Memory {
		d.name = MemoryName
		d.path = ""
		return d, nil
	}

	if opts.Path == "" {
		return nil, fmt.Errorf("database: path is required for file databases")
	}
	base := filepath.Base(opts.Path)
	d.name = strings.TrimSuffix(base, filepath.Ext(base))

	if !opts.Mutable {
		hash, err := inspect.Hash(opts.Path)
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", opts.Path, err)
		}
		d.hash = hash
		d.cachedSize = st.Size()

		if data, ok := opts.InspectData[d.name]; ok {
			counts := make(map[string]*int64, len(data.Tables))
			for table, td := range data.Tables {
				count := td.Count
				counts[table] = &count
			}
			d.cachedCounts = counts
		}
	}

	return d, nil
}

// Name returns the database name: the file stem, or ":memory:" for memory
// instances. It also keys the pool's per-worker connection cache.
func (d *Database) Name() string {
	return d.name
}

// Path returns the backing file path, empty for memory databases.
func (d *Database) Path() string {
	return d.path
}

// IsMutable reports whether the file may change during the process lifetime.
func (d *Database) IsMutable() bool {
	return d.mutable
}

// IsMemory reports whether this is an ephemeral in-memory instance.
func (d *Database) IsMemory() bool {
	return d.memory
}

// Hash returns the content hash, empty unless the database is immutable.
func (d *Database) Hash() string {
	return d.hash
}

// Size returns the file size in bytes. Memory databases report 0 and
// immutable databases report the size cached at construction.
func (d *Database) Size() (int64, error) {
	if d.memory {
		return 0, nil
	}
	if !d.mutable {
		return d.cachedSize, nil
	}
	st, err := os.Stat(d.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", d.path, err)
	}
	return st.Size(), nil
}

// MTime returns the file's modification time (nanosecond resolution).
// Memory databases have no backing file and return an error.
func (d *Database) MTime() (time.Time, error) {
	if d.memory {
		return time.Time{}, fmt.Errorf("database %s has no backing file", d.name)
	}
	st, err := os.Stat(d.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", d.path, err)
	}
	return st.ModTime(), nil
}

// dsn maps mutability to the SQLite URI open mode. A mutable file uses
// mode=ro: read-only, but the engine still watches for changes made by
// other writers. An immutable file uses immutable=1: a read-only snapshot
// the engine may mmap and cache aggressively because it is guaranteed the
// bytes cannot change underneath it.
func (d *Database) dsn() string {
	if d.memory {
		return MemoryName
	}
	if d.mutable {
		return fmt.Sprintf("file:%s?mode=ro", d.path)
	}
	return fmt.Sprintf("file:%s?immutable=1", d.path)
}

// OpenConn implements pool.Opener: it hands out a dedicated native
// connection and runs the prepare hook on it exactly once. For memory
// databases every native connection is its own private storage, so each
// worker gets a distinct instance.
func (d *Database) OpenConn(ctx context.Context) (*sql.Conn, error) {
	d.openOnce.Do(func() {
		db, err := sql.Open("sqlite", d.dsn())
		if err != nil {
			d.openErr = fmt.Errorf("failed to open database %s: %w", d.name, err)
			return
		}
		d.db = db
	})
	if d.openErr != nil {
		return nil, d.openErr
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to %s: %w", d.name, err)
	}

	if d.prepare != nil {
		if err := d.prepare(ctx, conn, d.name); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to prepare connection to %s: %w", d.name, err)
		}
	}
	return conn, nil
}

// String summarizes the handle for diagnostics.
func (d *Database) String() string {
	var tags []string
	if d.mutable {
		tags = append(tags, "mutable")
	}
	if d.memory {
		tags = append(tags, "memory")
	}
	if d.hash != "" {
		tags = append(tags, "hash="+d.hash)
	}
	if size, err := d.Size(); err == nil {
		tags = append(tags, fmt.Sprintf("size=%d", size))
	}
	if len(tags) == 0 {
		return fmt.Sprintf("<Database: %s>", d.name)
	}
	return fmt.Sprintf("<Database: %s (%s)>", d.name, strings.Join(tags, ", "))
}
