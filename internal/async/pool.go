package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
)

// WorkerPool runs a Handler over queued items on a fixed number of goroutines.
//
// The first handler error stops the pool: later items are drained without being
// handled, Enqueue starts failing and Shutdown returns that error. Items already
// being handled run to completion.
type WorkerPool[T any] struct {
	handle  Handler[T]
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan T
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	stopOnce sync.Once
	stopped  chan struct{}
	err      error

	handled   atomic.Int64
	discarded atomic.Int64
}

type Option func(*poolOptions)

type poolOptions struct {
	workers   int
	queueSize int
	timeout   time.Duration
}

// WithWorkers sets the number of concurrent workers. Width 1 handles items strictly in order.
func WithWorkers(n int) Option {
	return func(o *poolOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *poolOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithProcessTimeout bounds each handler call. Zero means no timeout.
func WithProcessTimeout(d time.Duration) Option {
	return func(o *poolOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewWorkerPool starts the workers immediately.
func NewWorkerPool[T any](handle Handler[T], logger *slog.Logger, opts ...Option) *WorkerPool[T] {
	if logger == nil {
		logger = slog.Default()
	}
	o := poolOptions{workers: 4, queueSize: 256}
	for _, opt := range opts {
		opt(&o)
	}
	p := &WorkerPool[T]{
		handle:  handle,
		logger:  logger,
		workers: o.workers,
		timeout: o.timeout,
		ch:      make(chan T, o.queueSize),
		stopped: make(chan struct{}),
	}
	p.start()
	return p
}

func (p *WorkerPool[T]) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("async.worker.started", "worker_id", workerID)

				for item := range p.ch {
					if p.isStopped() {
						p.discarded.Add(1)
						continue
					}
					if err := p.run(workerID, item); err != nil {
						p.stop(err)
						p.logger.Error("async.worker.fatal", "worker_id", workerID, "error", err)
						continue
					}
					p.handled.Add(1)
				}

				p.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *WorkerPool[T]) run(workerID int, item T) (err error) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", workerID, r)
		}
	}()
	return p.handle(ctx, workerID, item)
}

func (p *WorkerPool[T]) stop(err error) {
	p.stopOnce.Do(func() {
		p.err = err
		close(p.stopped)
	})
}

func (p *WorkerPool[T]) isStopped() bool {
	select {
	case <-p.stopped:
		return true
	default:
		return false
	}
}

// Stopped is closed when a handler error has stopped the pool.
func (p *WorkerPool[T]) Stopped() <-chan struct{} {
	return p.stopped
}

// Enqueue blocks while the buffer is full. It fails once the pool is shut down or stopped.
func (p *WorkerPool[T]) Enqueue(ctx context.Context, item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return common.ErrQueueClosed
	}
	if p.isStopped() {
		return fmt.Errorf("%w: %w", common.ErrQueueClosed, p.err)
	}
	select {
	case p.ch <- item:
		return nil
	default:
	}

	p.logger.Debug("async.queue.full", "capacity", cap(p.ch))
	select {
	case p.ch <- item:
		return nil
	case <-p.stopped:
		return fmt.Errorf("%w: %w", common.ErrQueueClosed, p.err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes intake and waits for the workers to drain the queue.
func (p *WorkerPool[T]) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("async.shutdown.interrupted")
		return ctx.Err()
	case <-done:
	}

	p.logger.Debug("async.shutdown.done", "handled", p.handled.Load(), "discarded", p.discarded.Load())
	if p.isStopped() {
		return p.err
	}
	return nil
}

// Handled is the number of items whose handler returned nil.
func (p *WorkerPool[T]) Handled() int64 { return p.handled.Load() }

// Discarded is the number of items drained without handling after a stop.
func (p *WorkerPool[T]) Discarded() int64 { return p.discarded.Load() }

var _ Queue[struct{}] = (*WorkerPool[struct{}])(nil)
