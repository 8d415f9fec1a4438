package trace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEventIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEventID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Emit(context.Background(), Event{ID: NewEventID(), Kind: "sql"})
	})
}

func TestSlogTracerLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogTracer(logger).Emit(context.Background(), Event{
		ID:       "ev-1",
		Kind:     "sql",
		Database: "fixtures",
		SQL:      "select 1",
		Duration: 3 * time.Millisecond,
		Err:      errors.New("boom"),
	})

	out := buf.String()
	assert.Contains(t, out, "sql trace")
	assert.Contains(t, out, "database=fixtures")
	assert.Contains(t, out, "error=boom")
}

func TestSlogTracerNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewSlogTracer(nil).Emit(context.Background(), Event{Kind: "sql"})
	})
}
