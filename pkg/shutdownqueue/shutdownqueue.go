// Package shutdownqueue provides a LIFO queue of cleanup tasks drained once
// at process exit.
//
// A process-wide queue is available through Add and Shutdown; components
// that want their own lifecycle (tests, embedded servers) create one with
// New:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	defer shutdownqueue.Shutdown(ctx)
//
// Tasks run once, in reverse order of registration. Panics are recovered.
// Shutdown is idempotent and returns an aggregated error via errors.Join.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task is a shutdown function. It should honor ctx and return an error
// if it can't finish (or ctx is canceled).
type Task func(ctx context.Context) error

// Queue holds registered tasks until Shutdown drains them.
type Queue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
}

func New() *Queue {
	return &Queue{tasks: make([]Task, 0, 8)}
}

var std = New()

// Add registers t on the process-wide queue.
func Add(t Task) { std.Add(t) }

// Shutdown drains the process-wide queue.
func Shutdown(ctx context.Context) error { return std.Shutdown(ctx) }

// Add registers a task to be run on Shutdown, in LIFO order.
// Safe to call from any goroutine. If t is nil or shutdown has already
// started, Add does nothing.
func (q *Queue) Add(t Task) {
	if t == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, t)
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Shutdown drains all registered tasks in LIFO order. Calls after the first
// are no-ops.
//
// If ctx is canceled mid-drain, Shutdown stops early and returns the context
// error joined with any task errors so far.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return nil
	}

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("shutdown canceled: %w", ctx.Err()))

			return errors.Join(errs...)
		default:
		}

		err := runTask(ctx, tasks[i])
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("panic in shutdown task: %v", r)
		}
	}()

	return t(ctx)
}
