// Package trace defines the tracing collaborator notified around each SQL
// execution. Tracing is diagnostic only: a failing or panicking tracer must
// never affect query results, so callers emit events through a panic guard.
package trace

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event describes a single traced operation.
type Event struct {
	// ID uniquely identifies the event.
	ID string
	// Kind is the operation kind (e.g. "sql").
	Kind string
	// Database is the logical database name.
	Database string
	// SQL is the normalized (trimmed) statement text.
	SQL string
	// Params are the statement parameters.
	Params []any
	// Duration is the total wall-clock time of the operation.
	Duration time.Duration
	// Err is the operation's error, if any.
	Err error
}

// Tracer receives events around each execution.
// Implementations must be safe for concurrent use.
type Tracer interface {
	Emit(ctx context.Context, ev Event)
}

// NewEventID returns a unique identifier for a trace event.
func NewEventID() string {
	return uuid.New().String()
}

// Nop returns a tracer that discards all events.
func Nop() Tracer {
	return nopTracer{}
}

type nopTracer struct{}

func (nopTracer) Emit(context.Context, Event) {}

// NewSlogTracer returns a tracer that logs events at debug level.
func NewSlogTracer(logger *slog.Logger) Tracer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &slogTracer{logger: logger}
}

type slogTracer struct {
	logger *slog.Logger
}

func (t *slogTracer) Emit(ctx context.Context, ev Event) {
	attrs := []any{
		slog.String("id", ev.ID),
		slog.String("kind", ev.Kind),
		slog.String("database", ev.Database),
		slog.String("sql", ev.SQL),
		slog.Any("params", ev.Params),
		slog.Duration("duration", ev.Duration),
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.String("error", ev.Err.Error()))
	}
	t.logger.DebugContext(ctx, "sql trace", attrs...)
}
