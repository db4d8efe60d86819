package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// WriteFunc performs writes inside a batch transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// ErrBatchWriterClosed is returned by Submit after Close.
var ErrBatchWriterClosed = errors.New("batch writer closed")

// BatchWriter buffers writes and commits them in fixed size batches, one
// transaction per batch. A failing write rolls back only its own batch.
// Batches are committed in submission order by a single goroutine.
type BatchWriter struct {
	mu     sync.Mutex
	buf    []WriteFunc
	size   int
	closed bool

	ctx      context.Context
	conn     *sql.DB
	commitCh chan []WriteFunc
	wg       sync.WaitGroup

	// OnCommit runs on the committer goroutine after a batch of n writes commits.
	OnCommit func(n int)
	// OnError runs on the committer goroutine when a batch of n writes is rolled
	// back. Batches dropped after cancellation are only reported by Close.
	OnError func(n int, err error)

	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter creates a BatchWriter committing every size writes. Set the
// callbacks before the first Submit.
func NewBatchWriter(ctx context.Context, conn *sql.DB, size int) *BatchWriter {
	if size <= 0 {
		size = 1000
	}
	bw := &BatchWriter{
		buf:      make([]WriteFunc, 0, size),
		size:     size,
		ctx:      ctx,
		conn:     conn,
		commitCh: make(chan []WriteFunc, 2),
	}
	bw.wg.Add(1)
	go bw.committer()
	return bw
}

// Submit enqueues a write. It blocks while two full batches are waiting to be
// committed.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) >= bw.size {
		bw.flushLocked()
	}
	return nil
}

// flushLocked assumes bw.mu is held.
func (bw *BatchWriter) flushLocked() {
	if len(bw.buf) == 0 {
		return
	}
	batch := bw.buf
	bw.buf = make([]WriteFunc, 0, bw.size)
	select {
	case bw.commitCh <- batch:
	case <-bw.ctx.Done():
		bw.record(fmt.Errorf("dropping batch of %d writes: %w", len(batch), bw.ctx.Err()))
	}
}

func (bw *BatchWriter) committer() {
	defer bw.wg.Done()
	for batch := range bw.commitCh {
		if err := bw.execute(batch); err != nil {
			bw.record(err)
			if bw.OnError != nil {
				bw.OnError(len(batch), err)
			}
			continue
		}
		if bw.OnCommit != nil {
			bw.OnCommit(len(batch))
		}
	}
}

func (bw *BatchWriter) execute(batch []WriteFunc) error {
	if err := bw.ctx.Err(); err != nil {
		return fmt.Errorf("batch of %d writes: %w", len(batch), err)
	}
	err := WithTx(bw.ctx, bw.conn, func(tx *sql.Tx) error {
		for _, w := range batch {
			if err := w(bw.ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch of %d writes: %w", len(batch), err)
	}
	return nil
}

func (bw *BatchWriter) record(err error) {
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.errMu.Unlock()
}

// Close flushes the remaining writes, waits for every batch to finish and
// returns the first batch error.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	bw.flushLocked()
	bw.mu.Unlock()

	close(bw.commitCh)
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}
