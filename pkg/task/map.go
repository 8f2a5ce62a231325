package task

import (
	"context"
	"fmt"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/ambient"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/config"
	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// ItemBody processes one item of a parallel map
type ItemBody func(ctx context.Context, item any) (any, error)

// Result is one per-item outcome of Map
type Result struct {
	Index int
	Value any
	Err   error
}

// Options configures Map
type Options struct {
	// MaxConcurrent bounds in-flight items (default: suite-wide setting)
	MaxConcurrent int

	// Ordered yields results in input order; otherwise completion order
	Ordered bool

	// Timeout bounds each item's body; zero disables the bound
	Timeout time.Duration

	// KillOnTimeout cancels a timed-out item's context. When false a
	// timed-out body keeps running and only the result reports the timeout.
	KillOnTimeout bool
}

// DefaultOptions returns a default Map configuration
func DefaultOptions() *Options {
	cfg := concurrency.LoadConfig()
	return &Options{
		MaxConcurrent: cfg.MaxConcurrent,
		Ordered:       cfg.OrderingMode == concurrency.OrderingModeInput,
	}
}

// Map spawns one goroutine per item, each set up like Async (captured
// config, fresh slot, callbacks), bounded by a concurrency limiter. It
// returns a lazily consumed stream of per-item results: input order when
// opts.Ordered, completion order otherwise. Per-item timeouts surface as
// timeout results; the kill policy additionally cancels the item's context.
func Map(ctx context.Context, items []any, body ItemBody, opts *Options) <-chan Result {
	if opts == nil {
		opts = DefaultOptions()
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = concurrency.LoadConfig().MaxConcurrent
	}

	captured := ambient.Current(ctx)
	limiter := concurrency.NewLimiter(maxConcurrent)

	perItem := make([]chan Result, len(items))
	completed := make(chan Result, len(items))

	for i := range items {
		perItem[i] = make(chan Result, 1)

		go func(index int, item any) {
			result := runItem(ctx, captured, body, index, item, opts, limiter)
			perItem[index] <- result
			completed <- result
		}(i, items[i])
	}

	out := make(chan Result, len(items))
	go func() {
		defer close(out)
		if opts.Ordered {
			for i := range perItem {
				out <- <-perItem[i]
			}
			return
		}
		for range items {
			out <- <-completed
		}
	}()

	return out
}

func runItem(ctx context.Context, captured *config.Config, body ItemBody, index int, item any, opts *Options, limiter *concurrency.Limiter) Result {
	if err := limiter.Acquire(ctx); err != nil {
		return Result{Index: index, Err: err}
	}
	defer limiter.Release()

	store := ambient.NewStore()
	itemCtx := ambient.With(ctx, store)
	store.Store(captured)

	if err := captured.ExecuteCallbacks(); err != nil {
		return Result{Index: index, Err: err}
	}

	if opts.Timeout <= 0 {
		value, err := body(itemCtx, item)
		return Result{Index: index, Value: value, Err: err}
	}

	var cancel context.CancelFunc
	if opts.KillOnTimeout {
		itemCtx, cancel = context.WithCancel(itemCtx)
	}

	type outcome struct {
		value any
		err   error
	}
	outcomes := make(chan outcome, 1)
	go func() {
		value, err := body(itemCtx, item)
		outcomes <- outcome{value: value, err: err}
	}()

	select {
	case res := <-outcomes:
		if cancel != nil {
			cancel()
		}
		return Result{Index: index, Value: res.value, Err: res.err}
	case <-time.After(opts.Timeout):
		if cancel != nil {
			// Kill policy: the item's context is cancelled; the body is
			// expected to observe it. Report policy leaves it running.
			cancel()
		}
		return Result{Index: index, Err: errors.NewError("item_timeout",
			fmt.Sprintf("item %d did not complete within %s", index, opts.Timeout),
			errors.ErrTimeout)}
	}
}
