// Package workerpool implements a fixed-size goroutine pool that strands,
// the dispatcher's async database calls, and room tick work all submit
// onto rather than spawning goroutines directly — bounding how much
// concurrent CPU-bound work the process takes on regardless of how bursty
// the work arriving from the network is.
package workerpool

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Pool runs submitted tasks on a fixed number of worker goroutines drawn
// from a shared queue, the same semaphore-gated-queue shape the worker
// pool this is grounded on uses, realized with a buffered channel in place
// of a counting semaphore plus a lock-free queue — Go's channel already
// gives both pieces at once.
type Pool struct {
	tasks   chan func()
	workers int
}

// New builds a Pool with workers goroutines draining a queue of capacity
// queueSize. Call Run to start the workers; Submit before Run blocks until
// a worker is available to accept capacity, same as after.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	return &Pool{tasks: make(chan func(), queueSize), workers: workers}
}

// Run starts the pool's worker goroutines under an errgroup tied to ctx,
// and blocks until ctx is cancelled and every worker has drained and
// returned.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for id := range p.workers {
		g.Go(func() error {
			p.worker(gctx, id)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			p.drainRemaining()
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(id, task)
		}
	}
}

// drainRemaining runs any tasks still queued at shutdown rather than
// dropping them silently, mirroring the reference pool's Stop(), which
// drains its queue before joining worker threads.
func (p *Pool) drainRemaining() {
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(-1, task)
		default:
			return
		}
	}
}

func (p *Pool) runTask(workerID int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("workerpool task panicked", slog.Int("worker", workerID), slog.Any("recover", r))
		}
	}()
	task()
}

// Submit enqueues a fire-and-forget task. Blocks if the queue is full.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// TrySubmit enqueues task without blocking. Returns false if the queue is
// full.
func (p *Pool) TrySubmit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Enqueue submits fn and returns a channel that receives its result once
// it runs, the future-returning counterpart to Submit.
func Enqueue[T any](p *Pool, fn func() T) <-chan T {
	result := make(chan T, 1)
	p.Submit(func() {
		result <- fn()
	})
	return result
}

// Close stops accepting new submissions. Workers already blocked on the
// queue finish once Run's context is cancelled.
func (p *Pool) Close() {
	close(p.tasks)
}
