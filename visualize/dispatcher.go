package visualize

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultTimeout bounds a single highlight call.
const DefaultTimeout = 5 * time.Second

const releaseTimeout = 3 * time.Second

// Dispatcher submits highlight requests to a worker pool and returns
// immediately. Failures are logged and never reach the caller.
type Dispatcher struct {
	highlighter Highlighter
	pool        *ants.Pool
	timeout     time.Duration
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher) error

// WithPoolSize sets the number of concurrent highlight workers.
// Default is 2.
func WithPoolSize(size int) DispatcherOption {
	return func(d *Dispatcher) error {
		if size < 1 {
			size = 1
		}
		if d.pool != nil {
			d.pool.Release()
		}
		pool, err := ants.NewPool(size, ants.WithNonblocking(true))
		if err != nil {
			return err
		}
		d.pool = pool
		return nil
	}
}

// WithTimeout bounds each highlight call.
// Default is DefaultTimeout.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) error {
		d.timeout = timeout
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDispatcher creates a dispatcher around highlighter.
func NewDispatcher(highlighter Highlighter, opts ...DispatcherOption) (*Dispatcher, error) {
	if highlighter == nil {
		return nil, ErrHighlighterRequired
	}

	pool, err := ants.NewPool(2, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		highlighter: highlighter,
		pool:        pool,
		timeout:     DefaultTimeout,
		logger:      slog.Default().With("component", "highlight-dispatcher"),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			d.Release()
			return nil, err
		}
	}
	return d, nil
}

// Dispatch hands marks to the highlighter in the background. When every
// worker is busy the request is dropped.
func (d *Dispatcher) Dispatch(queryID string, marks []Mark) {
	if len(marks) == 0 {
		return
	}
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.highlighter.Highlight(ctx, queryID, marks); err != nil {
			d.logger.Warn("highlight failed", "query_id", queryID, "marks", len(marks), "err", err)
		}
	})
	if err != nil {
		d.wg.Done()
		d.logger.Warn("highlight dropped", "query_id", queryID, "err", err)
	}
}

// Wait blocks until every submitted highlight has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Release waits for in-flight highlights and frees the pool. The
// dispatcher should not be used after calling Release.
func (d *Dispatcher) Release() {
	d.wg.Wait()
	if d.pool == nil {
		return
	}
	if err := d.pool.ReleaseTimeout(releaseTimeout); err != nil {
		d.logger.Warn("highlight pool did not shut down cleanly", "err", err)
	}
}
