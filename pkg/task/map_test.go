package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/ambient"
	"github.com/wehubfusion/Daedalus/pkg/config"
	liberrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

func TestMapOrderedYieldsInputOrder(t *testing.T) {
	ctx := ctxWithOwner("t1")
	items := []any{"slow", "fast"}

	results := Map(ctx, items, func(itemCtx context.Context, item any) (any, error) {
		if item == "slow" {
			time.Sleep(50 * time.Millisecond)
		}
		return item, nil
	}, &Options{Ordered: true, MaxConcurrent: 2})

	var got []any
	for result := range results {
		if result.Err != nil {
			t.Fatalf("item %d failed: %v", result.Index, result.Err)
		}
		got = append(got, result.Value)
	}

	if len(got) != 2 || got[0] != "slow" || got[1] != "fast" {
		t.Fatalf("expected input order [slow fast], got %v", got)
	}
}

func TestMapUnorderedYieldsCompletionOrder(t *testing.T) {
	ctx := ctxWithOwner("t1")
	items := []any{"slow", "fast"}

	results := Map(ctx, items, func(itemCtx context.Context, item any) (any, error) {
		if item == "slow" {
			time.Sleep(80 * time.Millisecond)
		}
		return item, nil
	}, &Options{Ordered: false, MaxConcurrent: 2})

	first := <-results
	if first.Err != nil {
		t.Fatalf("first result failed: %v", first.Err)
	}
	if first.Value != "fast" {
		t.Fatalf("expected the fast item to complete first, got %v", first.Value)
	}
}

func TestMapItemsInheritCallerConfig(t *testing.T) {
	ctx := ctxWithOwner("t1")

	results := Map(ctx, []any{1, 2, 3}, func(itemCtx context.Context, item any) (any, error) {
		return ambient.Current(itemCtx).Owner(), nil
	}, &Options{Ordered: true, MaxConcurrent: 3})

	for result := range results {
		if result.Err != nil {
			t.Fatalf("item %d failed: %v", result.Index, result.Err)
		}
		if result.Value != "t1" {
			t.Fatalf("item %d observed owner %v", result.Index, result.Value)
		}
	}
}

func TestMapKillOnTimeoutYieldsTimeoutResult(t *testing.T) {
	ctx := ctxWithOwner("t1")
	cancelled := make(chan struct{})

	results := Map(ctx, []any{"sleepy"}, func(itemCtx context.Context, item any) (any, error) {
		select {
		case <-itemCtx.Done():
			close(cancelled)
			return nil, itemCtx.Err()
		case <-time.After(2 * time.Second):
			return item, nil
		}
	}, &Options{Ordered: true, MaxConcurrent: 1, Timeout: 30 * time.Millisecond, KillOnTimeout: true})

	result := <-results
	if result.Err == nil {
		t.Fatal("expected timeout result, got success")
	}
	if !liberrors.IsTimeout(result.Err) {
		t.Fatalf("expected ErrTimeout, got %v", result.Err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected the item's context to be cancelled")
	}
}

func TestMapReportOnTimeoutLeavesBodyRunning(t *testing.T) {
	ctx := ctxWithOwner("t1")
	finished := make(chan struct{})

	results := Map(ctx, []any{"sleepy"}, func(itemCtx context.Context, item any) (any, error) {
		defer close(finished)
		select {
		case <-itemCtx.Done():
			return nil, itemCtx.Err()
		case <-time.After(100 * time.Millisecond):
			return item, nil
		}
	}, &Options{Ordered: true, MaxConcurrent: 1, Timeout: 30 * time.Millisecond})

	result := <-results
	if result.Err == nil || !liberrors.IsTimeout(result.Err) {
		t.Fatalf("expected timeout result, got %v", result.Err)
	}

	// The body was not cancelled; it runs to completion on its own.
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("expected the body to keep running to completion")
	}
}

func TestMapCallbackFaultFailsTheItem(t *testing.T) {
	boom := errors.New("boom")

	ctx := ambient.With(context.Background(), ambient.NewStore())
	ambient.StoreConfig(ctx, config.New("t1", &config.Options{Callbacks: []config.Callback{{
		Run: func(c *config.Config, args map[string]any) error { return boom },
	}}}))

	results := Map(ctx, []any{1}, func(itemCtx context.Context, item any) (any, error) {
		return item, nil
	}, &Options{Ordered: true, MaxConcurrent: 1})

	result := <-results
	if result.Err == nil || !errors.Is(result.Err, boom) {
		t.Fatalf("expected wrapped boom, got %v", result.Err)
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	ctx := ctxWithOwner("t1")

	var active, peak int64
	results := Map(ctx, []any{1, 2, 3, 4, 5, 6}, func(itemCtx context.Context, item any) (any, error) {
		current := atomic.AddInt64(&active, 1)
		for {
			observed := atomic.LoadInt64(&peak)
			if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return item, nil
	}, &Options{Ordered: true, MaxConcurrent: 2})

	for result := range results {
		if result.Err != nil {
			t.Fatalf("item %d failed: %v", result.Index, result.Err)
		}
	}

	if observed := atomic.LoadInt64(&peak); observed > 2 {
		t.Fatalf("expected at most 2 concurrent items, observed %d", observed)
	}
}

func TestMapNilOptionsUsesDefaults(t *testing.T) {
	ctx := ctxWithOwner("t1")

	results := Map(ctx, []any{1, 2}, func(itemCtx context.Context, item any) (any, error) {
		return item, nil
	}, nil)

	count := 0
	for result := range results {
		if result.Err != nil {
			t.Fatalf("item %d failed: %v", result.Index, result.Err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 results, got %d", count)
	}
}

func TestMapEmptyItems(t *testing.T) {
	ctx := ctxWithOwner("t1")

	results := Map(ctx, nil, func(itemCtx context.Context, item any) (any, error) {
		return item, nil
	}, &Options{Ordered: true, MaxConcurrent: 1})

	if _, ok := <-results; ok {
		t.Fatal("expected closed channel for empty input")
	}
}
