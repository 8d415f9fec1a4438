// Package pool implements the shared SQL worker pool with per-worker
// connection affinity. Every database and every query/introspection call
// goes through one bounded pool; each worker lazily opens and permanently
// owns one native connection per database, so no connection is ever shared
// between goroutines.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Run after the pool has been closed.
var ErrClosed = errors.New("pool is closed")

// Opener opens a new native connection for a database. The pool calls
// OpenConn at most once per (worker, database) pair.
type Opener interface {
	// Name identifies the database; it keys the per-worker connection cache.
	Name() string

	// OpenConn opens and prepares a dedicated connection.
	OpenConn(ctx context.Context) (*sql.Conn, error)
}

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context, w *Worker) error
	done chan error
}

// Pool is a bounded worker pool serving all databases.
type Pool struct {
	size   int
	logger *slog.Logger
	tasks  chan task
	group  *errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// New starts a pool with the given number of workers.
// A non-positive count is clamped to one worker.
func New(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Pool{
		size:   workers,
		logger: logger,
		tasks:  make(chan task),
		group:  &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		w := &Worker{id: i, pool: p, conns: make(map[string]*sql.Conn)}
		p.group.Go(w.loop)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Run dispatches fn to a free worker and waits for it to finish. If ctx is
// done before a worker picks the task up, the task never starts and ctx's
// error is returned. Once fn is running it is never abandoned; cancellation
// only takes effect through whatever deadline fn itself installs.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context, w *Worker) error) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}

	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	return <-t.done
}

// Close stops accepting tasks, waits for in-flight tasks to finish and
// closes every worker-owned connection. Safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	return p.group.Wait()
}

// Worker is a single pool worker. Conn must only be called from inside a
// task running on this worker.
type Worker struct {
	id    int
	pool  *Pool
	conns map[string]*sql.Conn
}

// ID returns the worker's index within the pool.
func (w *Worker) ID() int {
	return w.id
}

// Conn returns this worker's connection for the opener's database, opening
// it on first use. The connection stays bound to the worker until the pool
// shuts down; it is never shared with another worker.
func (w *Worker) Conn(ctx context.Context, o Opener) (*sql.Conn, error) {
	name := o.Name()
	if conn, ok := w.conns[name]; ok {
		return conn, nil
	}

	conn, err := o.OpenConn(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker %d: failed to open connection to %s: %w", w.id, name, err)
	}

	w.pool.logger.Debug("opened connection",
		slog.Int("worker", w.id),
		slog.String("database", name))

	w.conns[name] = conn
	return conn, nil
}

func (w *Worker) loop() error {
	defer w.closeConns()

	for t := range w.pool.tasks {
		if err := t.ctx.Err(); err != nil {
			// The caller gave up before the task started.
			t.done <- err
			continue
		}
		t.done <- t.fn(t.ctx, w)
	}
	return nil
}

func (w *Worker) closeConns() {
	for name, conn := range w.conns {
		if err := conn.Close(); err != nil {
			w.pool.logger.Debug("error closing connection",
				slog.Int("worker", w.id),
				slog.String("database", name),
				slog.String("error", err.Error()))
		}
	}
}
