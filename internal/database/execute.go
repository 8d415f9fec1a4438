package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/internal/pool"
	"github.com/quarrylabs/quarry/internal/trace"
)

// ExecuteOptions control a single Execute call. The zero value runs the
// statement under the global time limit without truncation.
type ExecuteOptions struct {
	// Truncate caps the result at the configured maximum returned rows
	// and sets Results.Truncated when rows were discarded.
	Truncate bool

	// TimeLimit lowers the statement deadline; it is only honored when
	// smaller than the global limit.
	TimeLimit time.Duration

	// PageSize overrides the configured default page size.
	PageSize int

	// QuietErrors suppresses error logging for failures the caller
	// expects and handles itself.
	QuietErrors bool
}

// Execute runs a statement on a pool worker under the effective time limit
// and returns the (possibly truncated) result set.
func (d *Database) Execute(ctx context.Context, query string, params []any, opts ExecuteOptions) (*Results, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = d.limits.PageSize
	}

	// Effective deadline: the global limit, lowered by a smaller custom one.
	timeLimit := d.limits.SQLTimeLimit
	if opts.TimeLimit > 0 && opts.TimeLimit < timeLimit {
		timeLimit = opts.TimeLimit
	}

	var results *Results
	start := time.Now()
	err := d.pool.Run(ctx, func(ctx context.Context, w *pool.Worker) error {
		conn, err := w.Conn(ctx, d)
		if err != nil {
			return err
		}
		res, err := d.runQuery(ctx, conn, query, params, opts.Truncate, timeLimit, pageSize, opts.QuietErrors)
		if err != nil {
			return err
		}
		results = res
		return nil
	})

	d.emitTrace(ctx, trace.Event{
		ID:       trace.NewEventID(),
		Kind:     "sql",
		Database: d.name,
		SQL:      strings.TrimSpace(query),
		Params:   params,
		Duration: time.Since(start),
		Err:      err,
	})

	if err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Database) runQuery(ctx context.Context, conn *sql.Conn, query string, params []any, truncate bool, timeLimit time.Duration, pageSize int, quiet bool) (*Results, error) {
	// Arm the statement deadline. The driver interrupts the running
	// statement once it elapses; cancel disarms it on every exit path.
	qctx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()

	rows, err := conn.QueryContext(qctx, query, params...)
	if err != nil {
		return nil, d.classify(err, query, params, quiet)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, d.classify(err, query, params, quiet)
	}

	maxRows := d.limits.MaxReturnedRows
	if maxRows == pageSize {
		// A full page must stay distinguishable from "more rows exist".
		maxRows++
	}

	fetchLimit := 0
	if truncate && maxRows > 0 {
		fetchLimit = maxRows + 1
	}

	var collected [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, d.classify(err, query, params, quiet)
		}
		collected = append(collected, values)
		if fetchLimit > 0 && len(collected) >= fetchLimit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, d.classify(err, query, params, quiet)
	}

	truncated := false
	if truncate && maxRows > 0 && len(collected) > maxRows {
		truncated = true
		collected = collected[:maxRows]
	}

	return &Results{Rows: collected, Columns: columns, Truncated: truncated}, nil
}

// classify separates deadline interrupts from other engine failures.
// Interrupts become QueryInterruptedError carrying the statement and its
// parameters; anything else is logged and returned as-is.
func (d *Database) classify(err error, query string, params []any, quiet bool) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "interrupted") {
		return &QueryInterruptedError{Err: err, SQL: query, Params: params}
	}
	if !quiet {
		d.logger.Error("sql error",
			slog.String("database", d.name),
			slog.String("sql", query),
			slog.Any("params", params),
			slog.String("error", err.Error()))
	}
	return err
}

// emitTrace notifies the tracing collaborator. A panicking tracer must
// never affect query results.
func (d *Database) emitTrace(ctx context.Context, ev trace.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("tracer panic", slog.Any("panic", r))
		}
	}()
	d.tracer.Emit(ctx, ev)
}
