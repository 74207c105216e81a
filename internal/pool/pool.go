package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// =============================================================================
// ThreadPool - bounded concurrency for I/O, filtering and copy stages
// =============================================================================

// Task is a handle to a submitted unit of work
type Task struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task finishes and returns its error
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// ThreadPool runs submitted functions with bounded concurrency.
// A semaphore caps the number of concurrently running tasks.
type ThreadPool struct {
	sem     chan struct{}
	stopped bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

// New creates a thread pool with the given concurrency.
// A non-positive size defaults to GOMAXPROCS.
func New(size int) *ThreadPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &ThreadPool{
		sem: make(chan struct{}, size),
	}
}

// Concurrency returns the maximum number of concurrently running tasks
func (p *ThreadPool) Concurrency() int {
	return cap(p.sem)
}

// Submit schedules fn and returns a handle to await it
func (p *ThreadPool) Submit(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		t.err = fmt.Errorf("thread pool is stopped")
		close(t.done)
		return t
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		t.err = fn()
		close(t.done)
	}()

	return t
}

// WaitAll awaits every task and returns the per-task statuses
func (p *ThreadPool) WaitAll(tasks []*Task) []error {
	errs := make([]error, len(tasks))
	for i, t := range tasks {
		errs[i] = t.Wait()
	}
	return errs
}

// WaitAllStatus awaits every task and returns the first error, if any
func (p *ThreadPool) WaitAllStatus(tasks []*Task) error {
	var first error
	for _, t := range tasks {
		if err := t.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ParallelFor runs fn for every index in [0, n) on the pool and waits.
// Each invocation observes ctx; the first error wins, with cancellation
// taking precedence.
func (p *ThreadPool) ParallelFor(ctx context.Context, n int, fn func(i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	tasks := make([]*Task, n)
	for i := 0; i < n; i++ {
		i := i
		tasks[i] = p.Submit(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	first := p.WaitAllStatus(tasks)
	if err := ctx.Err(); err != nil {
		return err
	}
	return first
}

// Stop waits for in-flight tasks and rejects new submissions
func (p *ThreadPool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.wg.Wait()
}
