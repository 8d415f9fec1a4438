package database

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/internal/pool"
	"github.com/quarrylabs/quarry/internal/testutil"
	"github.com/stretchr/testify/require"
)

// testLimits are generous enough that only the interrupt tests hit them.
var testLimits = Limits{
	SQLTimeLimit:    5 * time.Second,
	MaxReturnedRows: 100,
	PageSize:        10,
}

// createFixture writes a fresh database file populated by the given
// statements and returns its path.
func createFixture(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "statement: %s", stmt)
	}
	require.NoError(t, db.Close())
	return path
}

// docsFixture is the schema most introspection tests run against: a content
// table with an FTS index, a tag join table with foreign keys and a view.
func docsFixture(t *testing.T) string {
	t.Helper()
	return createFixture(t, "docs.db",
		`create table docs (id integer primary key, name text, body text)`,
		`create index idx_docs_name on docs (name)`,
		`insert into docs (name, body) values ('alpha', 'first document'),
			('beta', 'second document'), ('gamma', 'third document')`,
		`create table tags (tag text primary key)`,
		`insert into tags values ('red'), ('blue')`,
		`create table doc_tags (
			doc_id integer references docs(id),
			tag text references tags(tag),
			primary key (doc_id, tag)
		)`,
		`insert into doc_tags values (1, 'red'), (2, 'blue')`,
		`create view v_named_docs as select id, name from docs where name is not null`,
		`create virtual table docs_fts using fts5(body, content="docs")`,
	)
}

// appendRow runs a write statement against a fixture through a separate
// writable connection, simulating an external writer.
func appendRow(t *testing.T, path, stmt string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(stmt)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// newTestDatabase wires a Database to a fresh single-purpose pool that is
// torn down with the test.
func newTestDatabase(t *testing.T, opts Options) *Database {
	t.Helper()
	if opts.Pool == nil {
		p := pool.New(2, testutil.NewTestLogger(t))
		t.Cleanup(func() { _ = p.Close() })
		opts.Pool = p
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = testLimits
	}
	if opts.Logger == nil {
		opts.Logger = testutil.NewTestLogger(t)
	}

	d, err := New(opts)
	require.NoError(t, err)
	return d
}
