package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/internal/pool"
)

// spatialiteTables are internal tables created by the SpatiaLite extension,
// hidden from normal listings when the extension is detected.
var spatialiteTables = []string{
	"ElementaryGeometries",
	"SpatialIndex",
	"geometry_columns",
	"spatial_ref_sys",
	"spatialite_history",
	"sql_statements_log",
	"sqlite_sequence",
	"views_geometry_columns",
	"virts_geometry_columns",
}

// ForeignKey describes one side of a foreign key relationship.
type ForeignKey struct {
	// OtherTable is the table on the other side of the relationship.
	OtherTable string
	// Column is the referencing column.
	Column string
	// OtherColumn is the referenced column.
	OtherColumn string
}

// TableForeignKeys groups the relationships of a single table.
type TableForeignKeys struct {
	Incoming []ForeignKey
	Outgoing []ForeignKey
}

// TableNames returns the names of all tables in catalog order.
func (d *Database) TableNames(ctx context.Context) ([]string, error) {
	return d.selectNames(ctx, "select name from sqlite_master where type='table'")
}

// ViewNames returns the names of all views in catalog order.
func (d *Database) ViewNames(ctx context.Context) ([]string, error) {
	return d.selectNames(ctx, "select name from sqlite_master where type='view'")
}

// TableExists reports whether a table with the given name exists.
func (d *Database) TableExists(ctx context.Context, table string) (bool, error) {
	results, err := d.Execute(ctx,
		"select 1 from sqlite_master where type='table' and name=?",
		[]any{table}, ExecuteOptions{})
	if err != nil {
		return false, err
	}
	return len(results.Rows) > 0, nil
}

// TableColumns returns the column names of a table in declaration order.
func (d *Database) TableColumns(ctx context.Context, table string) ([]string, error) {
	var columns []string
	err := d.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var cid, notNull, pk int
			var name, colType string
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				return err
			}
			columns = append(columns, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// PrimaryKeys returns the names of a table's primary key columns, in
// declaration order.
func (d *Database) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	var keys []string
	err := d.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var cid, notNull, pk int
			var name, colType string
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				return err
			}
			if pk > 0 {
				keys = append(keys, name)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// FTSTable returns the name of the full-text-search virtual table
// configured for the given table, or "" when there is none. Detection is
// a literal pattern match against the catalog-stored creation SQL.
func (d *Database) FTSTable(ctx context.Context, table string) (string, error) {
	var fts string
	err := d.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		query := fmt.Sprintf(`
			select name from sqlite_master
				where rootpage = 0
				and (
					sql like '%%VIRTUAL TABLE%%USING FTS%%content="%s"%%'
					or sql like '%%VIRTUAL TABLE%%USING FTS%%content=[%s]%%'
					or (
						tbl_name = ?
						and sql like '%%VIRTUAL TABLE%%USING FTS%%'
					)
				)`, table, table)
		err := conn.QueryRowContext(ctx, query, table).Scan(&fts)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return fts, nil
}

// OutboundForeignKeys returns the foreign keys declared on a table.
func (d *Database) OutboundForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	var fks []ForeignKey
	err := d.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var err error
		fks, err = outboundForeignKeys(ctx, conn, table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fks, nil
}

func outboundForeignKeys(ctx context.Context, conn *sql.Conn, table string) ([]ForeignKey, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fks []ForeignKey
	for rows.Next() {
		var id, seq int
		var otherTable, from, onUpdate, onDelete, match string
		// "to" is NULL when the key references the other table's primary
		// key implicitly.
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &otherTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fks = append(fks, ForeignKey{OtherTable: otherTable, Column: from, OtherColumn: to.String})
	}
	return fks, rows.Err()
}

// AllForeignKeys returns, for every table, its incoming and outgoing
// foreign key relationships.
func (d *Database) AllForeignKeys(ctx context.Context) (map[string]TableForeignKeys, error) {
	tables, err := d.TableNames(ctx)
	if err != nil {
		return nil, err
	}

	all := make(map[string]TableForeignKeys, len(tables))
	for _, table := range tables {
		all[table] = TableForeignKeys{}
	}

	err = d.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		for _, table := range tables {
			fks, err := outboundForeignKeys(ctx, conn, table)
			if err != nil {
				return err
			}
			for _, fk := range fks {
				out := all[table]
				out.Outgoing = append(out.Outgoing, fk)
				all[table] = out

				in := all[fk.OtherTable]
				in.Incoming = append(in.Incoming, ForeignKey{
					OtherTable:  table,
					Column:      fk.Column,
					OtherColumn: fk.OtherColumn,
				})
				all[fk.OtherTable] = in
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// HiddenTableNames returns the tables hidden from normal listings: FTS
// virtual tables, SpatiaLite internals when the extension is detected,
// tables flagged hidden in metadata, and, in a single additional pass,
// any table whose name starts with the name of an already-hidden table.
func (d *Database) HiddenTableNames(ctx context.Context) ([]string, error) {
	hidden, err := d.selectNames(ctx, `
		select name from sqlite_master
		where rootpage = 0
		and sql like '%VIRTUAL TABLE%USING FTS%'`)
	if err != nil {
		return nil, err
	}

	spatialite, err := d.detectSpatiaLite(ctx)
	if err != nil {
		return nil, err
	}
	if spatialite {
		hidden = append(hidden, spatialiteTables...)
		idx, err := d.selectNames(ctx, `
			select name from sqlite_master
			where name like 'idx_%'
			and type = 'table'`)
		if err != nil {
			return nil, err
		}
		hidden = append(hidden, idx...)
	}

	for table, meta := range d.meta.ForDatabase(d.name).Tables {
		if meta.Hidden {
			hidden = append(hidden, table)
		}
	}

	tables, err := d.TableNames(ctx)
	if err != nil {
		return nil, err
	}

	// One pass only: a hidden table's name hides everything it prefixes,
	// e.g. docs_fts implies docs_fts_content. Chains of indirect prefixes
	// beyond one level are deliberately not resolved.
	base := hidden[:len(hidden):len(hidden)]
	for _, table := range tables {
		if slices.Contains(hidden, table) {
			continue
		}
		for _, h := range base {
			if strings.HasPrefix(table, h) {
				hidden = append(hidden, table)
				break
			}
		}
	}
	return hidden, nil
}

// LabelColumnForTable picks the column used to represent a row as a single
// human-readable value. Resolution order: explicit metadata override, a
// column named "name" or "title" (name wins), the non-key column of a
// two-column table with an "id" or "pk" column, otherwise "".
func (d *Database) LabelColumnForTable(ctx context.Context, table string) (string, error) {
	if explicit := d.meta.ForTable(d.name, table).LabelColumn; explicit != "" {
		return explicit, nil
	}

	columns, err := d.TableColumns(ctx, table)
	if err != nil {
		return "", err
	}

	for _, candidate := range []string{"name", "title"} {
		if slices.Contains(columns, candidate) {
			return candidate, nil
		}
	}

	if len(columns) == 2 {
		for _, key := range []string{"id", "pk"} {
			if columns[0] == key {
				return columns[1], nil
			}
			if columns[1] == key {
				return columns[0], nil
			}
		}
	}

	return "", nil
}

// TableCounts runs count(*) for every table under the given per-table time
// limit. Tables whose count fails or times out are recorded as unknown
// (nil) rather than failing the call. Immutable databases cache the full
// result for the lifetime of the handle; mutable and memory databases
// recompute it on every call.
func (d *Database) TableCounts(ctx context.Context, limit time.Duration) (map[string]*int64, error) {
	immutable := !d.mutable && !d.memory
	if immutable {
		d.countsMu.Lock()
		cached := d.cachedCounts
		d.countsMu.Unlock()
		if cached != nil {
			return cached, nil
		}
	}

	tables, err := d.TableNames(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*int64, len(tables))
	for _, table := range tables {
		results, err := d.Execute(ctx,
			fmt.Sprintf("select count(*) from %s", quoteIdent(table)), nil,
			ExecuteOptions{TimeLimit: limit, QuietErrors: true})
		if err != nil {
			// Interrupted or broken tables report an unknown count.
			counts[table] = nil
			continue
		}
		value, ok := results.First()
		if !ok {
			counts[table] = nil
			continue
		}
		count := toInt64(value)
		counts[table] = &count
	}

	if immutable {
		d.countsMu.Lock()
		d.cachedCounts = counts
		d.countsMu.Unlock()
	}
	return counts, nil
}

// TableDefinition returns the stored CREATE statement for a table plus any
// index definitions targeting it, each terminated with ";" and joined by
// newlines. Returns ErrNotFound when the table does not exist.
func (d *Database) TableDefinition(ctx context.Context, table string) (string, error) {
	return d.objectDefinition(ctx, table, "table")
}

// ViewDefinition returns the stored CREATE statement for a view.
// Returns ErrNotFound when the view does not exist.
func (d *Database) ViewDefinition(ctx context.Context, view string) (string, error) {
	return d.objectDefinition(ctx, view, "view")
}

func (d *Database) objectDefinition(ctx context.Context, name, kind string) (string, error) {
	results, err := d.Execute(ctx,
		"select sql from sqlite_master where name = ? and type = ?",
		[]any{name, kind}, ExecuteOptions{})
	if err != nil {
		return "", err
	}
	if len(results.Rows) == 0 {
		return "", fmt.Errorf("%s %s: %w", kind, name, ErrNotFound)
	}

	statements := []string{valueString(results.Rows[0][0]) + ";"}

	if kind == "table" {
		indexes, err := d.selectNames(ctx, `
			select sql from sqlite_master
			where tbl_name = ? and type = 'index' and sql is not null`, name)
		if err != nil {
			return "", err
		}
		for _, index := range indexes {
			statements = append(statements, index+";")
		}
	}
	return strings.Join(statements, "\n"), nil
}

// detectSpatiaLite probes for the SpatiaLite geometry_columns catalog table.
func (d *Database) detectSpatiaLite(ctx context.Context) (bool, error) {
	var found bool
	err := d.withConn(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var one int
		err := conn.QueryRowContext(ctx,
			"select 1 from sqlite_master where tbl_name = 'geometry_columns'").Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// withConn runs fn on this database's connection for whichever worker is
// free. Catalog and pragma readers use it directly, without installing the
// statement deadline.
func (d *Database) withConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	return d.pool.Run(ctx, func(ctx context.Context, w *pool.Worker) error {
		conn, err := w.Conn(ctx, d)
		if err != nil {
			return err
		}
		return fn(ctx, conn)
	})
}

// selectNames runs a single-column query through Execute and collects the
// values as strings.
func (d *Database) selectNames(ctx context.Context, query string, params ...any) ([]string, error) {
	results, err := d.Execute(ctx, query, params, ExecuteOptions{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(results.Rows))
	for _, row := range results.Rows {
		names = append(names, valueString(row[0]))
	}
	return names, nil
}

// quoteIdent wraps an identifier in brackets for safe interpolation into
// pragma and count statements.
func quoteIdent(name string) string {
	return "[" + name + "]"
}

func valueString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
