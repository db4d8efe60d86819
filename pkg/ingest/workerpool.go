package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Job is a unit of work run on the pool.
type Job func(ctx context.Context) error

// WorkerPoolInterface is the pool used by IngestAll. Tests substitute
// failing implementations through Ingester.PoolFactory.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx queues a job, giving up when ctx is done.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// ErrPoolClosed is returned when a job is submitted to a closed pool.
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError is the error type of pool operations.
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }

// WorkerPool runs CPU bound tokenization on a fixed set of goroutines.
// A failing or panicking job is counted and does not stop its worker.
type WorkerPool struct {
	size  int
	queue chan Job
	quit  chan struct{}

	mu       sync.Mutex
	closed   bool
	senders  sync.WaitGroup
	running  sync.WaitGroup
	failures atomic.Int64
}

// NewWorkerPool creates a pool of size workers over a queue of the given
// capacity. Non-positive values fall back to one worker and twice the
// workers of capacity.
func NewWorkerPool(size, capacity int) *WorkerPool {
	size = max(size, 1)
	if capacity <= 0 {
		capacity = 2 * size
	}
	return &WorkerPool{
		size:  size,
		queue: make(chan Job, capacity),
		quit:  make(chan struct{}),
	}
}

// Start launches the workers. They exit when ctx is done or when Close has
// drained the queue.
func (p *WorkerPool) Start(ctx context.Context) {
	p.running.Add(p.size)
	for range p.size {
		go p.work(ctx)
	}
}

func (p *WorkerPool) work(ctx context.Context) {
	defer p.running.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			if err := p.run(ctx, job); err != nil {
				p.failures.Add(1)
			}
		}
	}
}

func (p *WorkerPool) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(ctx)
}

// Failures returns the number of jobs that returned an error or panicked.
func (p *WorkerPool) Failures() int64 {
	return p.failures.Load()
}

// Submit queues job, blocking while the queue is full.
func (p *WorkerPool) Submit(job Job) error {
	return p.SubmitCtx(context.Background(), job)
}

// SubmitCtx queues job. It returns ErrPoolClosed when the pool closes first
// and ctx.Err() when ctx is done first.
func (p *WorkerPool) SubmitCtx(ctx context.Context, job Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.senders.Add(1)
	p.mu.Unlock()
	defer p.senders.Done()

	select {
	case p.queue <- job:
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further jobs, releases blocked submitters, lets queued jobs
// finish and waits for the workers. It is safe to call twice.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()

	// No sender may touch the queue once it is closed.
	p.senders.Wait()
	close(p.queue)
	p.running.Wait()
}
