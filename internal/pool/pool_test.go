package pool

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quarrylabs/quarry/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// countingOpener is an Opener backed by an in-memory database that counts
// how many connections were handed out.
type countingOpener struct {
	name  string
	db    *sql.DB
	opens atomic.Int32
}

func newCountingOpener(t *testing.T, name string) *countingOpener {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &countingOpener{name: name, db: db}
}

func (o *countingOpener) Name() string { return o.name }

func (o *countingOpener) OpenConn(ctx context.Context) (*sql.Conn, error) {
	o.opens.Add(1)
	return o.db.Conn(ctx)
}

func TestRunExecutesOnWorker(t *testing.T) {
	p := New(1, testutil.NewTestLogger(t))
	defer func() { _ = p.Close() }()

	opener := newCountingOpener(t, "test")

	var got int
	err := p.Run(context.Background(), func(ctx context.Context, w *Worker) error {
		conn, err := w.Conn(ctx, opener)
		if err != nil {
			return err
		}
		return conn.QueryRowContext(ctx, "select 41 + 1").Scan(&got)
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestConnOpenedOncePerWorker(t *testing.T) {
	p := New(1, testutil.NewTestLogger(t))
	defer func() { _ = p.Close() }()

	opener := newCountingOpener(t, "test")

	for i := 0; i < 5; i++ {
		err := p.Run(context.Background(), func(ctx context.Context, w *Worker) error {
			_, err := w.Conn(ctx, opener)
			return err
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), opener.opens.Load())
}

func TestConnsBoundedByPoolSize(t *testing.T) {
	p := New(4, testutil.NewTestLogger(t))
	defer func() { _ = p.Close() }()

	opener := newCountingOpener(t, "test")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(context.Background(), func(ctx context.Context, w *Worker) error {
				if _, err := w.Conn(ctx, opener); err != nil {
					return err
				}
				time.Sleep(5 * time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	opens := opener.opens.Load()
	assert.GreaterOrEqual(t, opens, int32(1))
	assert.LessOrEqual(t, opens, int32(p.Size()))
}

func TestWorkerKeepsSeparateConnsPerDatabase(t *testing.T) {
	p := New(1, testutil.NewTestLogger(t))
	defer func() { _ = p.Close() }()

	first := newCountingOpener(t, "first")
	second := newCountingOpener(t, "second")

	err := p.Run(context.Background(), func(ctx context.Context, w *Worker) error {
		a, err := w.Conn(ctx, first)
		if err != nil {
			return err
		}
		b, err := w.Conn(ctx, second)
		if err != nil {
			return err
		}
		assert.NotSame(t, a, b)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), first.opens.Load())
	assert.Equal(t, int32(1), second.opens.Load())
}

func TestRunAfterClose(t *testing.T) {
	p := New(2, testutil.NewTestLogger(t))
	require.NoError(t, p.Close())

	err := p.Run(context.Background(), func(ctx context.Context, w *Worker) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New(2, testutil.NewTestLogger(t))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestCancelledContextSkipsTask(t *testing.T) {
	p := New(1, testutil.NewTestLogger(t))
	defer func() { _ = p.Close() }()

	// Occupy the only worker so the next dispatch has to wait.
	release := make(chan struct{})
	busy := make(chan struct{})
	go func() {
		_ = p.Run(context.Background(), func(ctx context.Context, w *Worker) error {
			close(busy)
			<-release
			return nil
		})
	}()
	<-busy

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := p.Run(ctx, func(ctx context.Context, w *Worker) error {
		ran = true
		return nil
	})
	close(release)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestSizeClampedToOne(t *testing.T) {
	p := New(0, nil)
	defer func() { _ = p.Close() }()
	assert.Equal(t, 1, p.Size())
}
