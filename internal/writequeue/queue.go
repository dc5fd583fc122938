// Package writequeue implements the single-consumer FIFO queue that
// serializes every mutating file operation for one path. A channel read
// by one consuming goroutine is already the idiomatic shape for this, so
// this package reaches for no external dependency.
package writequeue

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Work is a unit of mutating file I/O. It receives the caller's context
// so long-running work can observe cancellation cooperatively.
type Work func(ctx context.Context) error

type job struct {
	ctx  context.Context
	work Work
	done chan error
}

// Queue is a FIFO queue with exactly one consumer goroutine, serializing
// all submissions for one backing file.
type Queue struct {
	jobs     chan job
	shutdown chan struct{}
	stopped  chan struct{}
}

// New starts the queue's consumer goroutine and returns the Queue.
func New() *Queue {
	q := &Queue{
		jobs:     make(chan job, 256),
		shutdown: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case j := <-q.jobs:
			q.execute(j)
		case <-q.shutdown:
			q.drain()
			return
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case j := <-q.jobs:
			q.execute(j)
		default:
			return
		}
	}
}

func (q *Queue) execute(j job) {
	select {
	case <-j.ctx.Done():
		j.done <- j.ctx.Err()
		return
	default:
	}
	err := j.work(j.ctx)
	j.done <- err
}

// Submit appends work to the queue and returns a completion channel that
// receives work's outcome (nil or error) once the consumer has run it,
// exactly once. Submit waits only for room in the queue's 256-entry
// buffer, never for the work itself to run.
func (q *Queue) Submit(ctx context.Context, work Work) <-chan error {
	done := make(chan error, 1)
	select {
	case <-q.shutdown:
		done <- fmt.Errorf("minidb: write queue is shut down")
		return done
	default:
	}
	select {
	case q.jobs <- job{ctx: ctx, work: work, done: done}:
	case <-q.shutdown:
		done <- fmt.Errorf("minidb: write queue is shut down")
	}
	return done
}

// Run submits work and blocks until it completes or ctx is cancelled.
func (q *Queue) Run(ctx context.Context, work Work) error {
	done := q.Submit(ctx, work)
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush submits a no-op and waits for it, so that by the time Flush
// returns, every work unit submitted before it has finished.
func (q *Queue) Flush(ctx context.Context) error {
	return q.Run(ctx, func(context.Context) error { return nil })
}

// Shutdown closes the queue to new submissions, drains outstanding work,
// and stops the consumer, bounded by a ~10s wait.
func (q *Queue) Shutdown() error {
	close(q.shutdown)
	select {
	case <-q.stopped:
		return nil
	case <-time.After(10 * time.Second):
		log.Warn("minidb: write queue did not drain within 10s")
		return fmt.Errorf("minidb: write queue shutdown timed out")
	}
}
