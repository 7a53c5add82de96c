// Package pool implements a fixed-size FIFO worker pool with cooperative
// shutdown, per spec.md §4/§5: the scheduler enqueues game tasks; workers
// drain the queue and, once a stop is requested, finish their current task
// and exit without starting another.
package pool

import (
	"context"
	"sync"

	"github.com/seekerror/stdlib/pkg/util/iox"
)

// Task is a unit of work; it receives the pool's context so it can observe
// cancellation, though per spec.md §5 a running game is never cancelled
// mid-flight -- only the decision to start the *next* task is gated.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed number of worker goroutines.
type Pool struct {
	iox.AsyncCloser

	concurrency int
	tasks       chan Task
	workers     sync.WaitGroup // worker goroutines
	inflight    sync.WaitGroup // submitted-but-not-yet-finished tasks
}

// New creates a Pool with the given number of workers. Start must be
// called before tasks are submitted.
func New(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		AsyncCloser: iox.NewAsyncCloser(),
		concurrency: concurrency,
		tasks:       make(chan Task),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.workers.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.workers.Done()

	for {
		select {
		case <-p.Closed():
			return
		case task := <-p.tasks:
			task(ctx)
			p.inflight.Done()
		}
	}
}

// Submit enqueues a task, blocking until a worker picks it up or the pool
// has been stopped. Submit after Stop is a no-op: the task is dropped
// without running.
func (p *Pool) Submit(task Task) {
	p.inflight.Add(1)
	select {
	case <-p.Closed():
		p.inflight.Done()
	case p.tasks <- task:
	}
}

// Wait blocks until every submitted task has finished running. Call this
// to join a tournament's natural completion (as opposed to Stop's early,
// cooperative kill).
func (p *Pool) Wait() {
	p.inflight.Wait()
}

// Stop requests cooperative shutdown: workers finish their current task and
// exit without picking up a new one, then Stop blocks until all workers
// have returned.
func (p *Pool) Stop() {
	p.Close()
	p.workers.Wait()
}
