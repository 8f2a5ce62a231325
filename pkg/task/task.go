// Package task applies the spawn-adapter pattern to fire-and-forget and
// parallel units of work: each task captures the calling unit's current
// config, restores it into the task's own ambient slot and executes its
// callbacks before running the body.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/ambient"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// Body is a task body producing a value or an error
type Body func(ctx context.Context) (any, error)

// ArgsBody is a task body applied to captured arguments
type ArgsBody func(ctx context.Context, args map[string]any) (any, error)

// Task represents a pending result
type Task struct {
	done  chan struct{}
	value any
	err   error
}

// Async captures the caller's current config and runs body on a new
// goroutine with that config stored in a fresh ambient slot and its
// callbacks executed. The returned task resolves to the body's result; a
// callback fault resolves the task to that fault without running the body.
func Async(ctx context.Context, body Body) *Task {
	captured := ambient.Current(ctx)
	t := &Task{done: make(chan struct{})}

	go func() {
		defer close(t.done)

		store := ambient.NewStore()
		taskCtx := ambient.With(ctx, store)
		store.Store(captured)

		if err := captured.ExecuteCallbacks(); err != nil {
			t.err = err
			return
		}
		t.value, t.err = body(taskCtx)
	}()

	return t
}

// AsyncArgs is Async with the body applied to args
func AsyncArgs(ctx context.Context, body ArgsBody, args map[string]any) *Task {
	return Async(ctx, func(taskCtx context.Context) (any, error) {
		return body(taskCtx, args)
	})
}

// Await blocks the calling unit until the task resolves or timeout elapses.
// A zero timeout uses the suite-wide default (5s unless overridden via
// DAEDALUS_AWAIT_TIMEOUT_MS).
func (t *Task) Await(timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = concurrency.LoadConfig().AwaitTimeout
	}

	select {
	case <-t.done:
		return t.value, t.err
	case <-time.After(timeout):
		return nil, errors.NewError("await_timeout",
			fmt.Sprintf("task did not resolve within %s", timeout),
			errors.ErrTimeout)
	}
}

// AwaitAll blocks until every task resolves or timeout elapses, returning
// values in task order. The first task error fails the await; the timeout
// bounds the whole batch, not each task.
func AwaitAll(tasks []*Task, timeout time.Duration) ([]any, error) {
	if timeout <= 0 {
		timeout = concurrency.LoadConfig().AwaitTimeout
	}
	deadline := time.Now().Add(timeout)

	values := make([]any, len(tasks))
	for i, t := range tasks {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Nanosecond
		}

		select {
		case <-t.done:
			if t.err != nil {
				return nil, t.err
			}
			values[i] = t.value
		case <-time.After(remaining):
			return nil, errors.NewError("await_timeout",
				fmt.Sprintf("task %d did not resolve within %s", i, timeout),
				errors.ErrTimeout)
		}
	}
	return values, nil
}
