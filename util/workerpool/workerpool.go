// Package workerpool runs independent simulation jobs on a fixed number of
// goroutines.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned for tasks submitted after Stop or StopNow.
var ErrStopped = errors.New("worker pool stopped")

// Task is a unit of work executed by the pool.
type Task func(ctx context.Context) error

// Result is the outcome of one task of a batch. Index is the task's position
// in the submitted slice.
type Result struct {
	Index int
	Err   error
}

// WorkerPool is a fixed-size pool of goroutines that execute tasks.
type WorkerPool struct {
	numWorkers int
	tasks      chan taskWrapper
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

type taskWrapper struct {
	task   Task
	result chan error
}

// New creates a pool with numWorkers workers (at least one). Tasks run with
// a context derived from ctx that is cancelled by StopNow.
func New(ctx context.Context, numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		numWorkers: numWorkers,
		tasks:      make(chan taskWrapper, numWorkers*2),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NumWorkers returns the pool size.
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for tw := range wp.tasks {
		if err := wp.ctx.Err(); err != nil {
			tw.result <- err
			continue
		}
		tw.result <- tw.task(wp.ctx)
	}
}

// Submit queues task and returns a channel that receives its error. It
// blocks while the queue is full. Tasks submitted to a stopped pool fail with
// ErrStopped.
func (wp *WorkerPool) Submit(task Task) <-chan error {
	result := make(chan error, 1)

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		result <- ErrStopped
		return result
	}
	wp.tasks <- taskWrapper{task: task, result: result}
	return result
}

// SubmitAndWait runs tasks on the pool and waits for all of them. Results
// are returned in submission order. If ctx is done first, the tasks still
// pending report ctx.Err().
func (wp *WorkerPool) SubmitAndWait(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]Result, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		results[i].Index = i
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				results[i].Err = ctx.Err()
			case err := <-wp.Submit(task):
				results[i].Err = err
			}
		}()
	}
	wg.Wait()
	return results
}

// Stop lets queued tasks finish, then shuts the workers down.
func (wp *WorkerPool) Stop() {
	if !wp.markStopped() {
		return
	}
	close(wp.tasks)
	wp.wg.Wait()
	wp.cancel()
}

// StopNow cancels the task context and shuts the workers down. Queued tasks
// that have not started fail with context.Canceled.
func (wp *WorkerPool) StopNow() {
	wp.cancel()
	if !wp.markStopped() {
		return
	}
	close(wp.tasks)
	wp.wg.Wait()
}

func (wp *WorkerPool) markStopped() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return false
	}
	wp.stopped = true
	return true
}
