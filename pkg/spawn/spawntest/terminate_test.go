package spawntest

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/ambient"
	"github.com/wehubfusion/Daedalus/pkg/config"
	"github.com/wehubfusion/Daedalus/pkg/envelope"
	liberrors "github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/lookup"
	"github.com/wehubfusion/Daedalus/pkg/spawn"
)

var testOpts = &spawn.Options{Logger: zap.NewNop()}

type idleUnit struct{}

func (u *idleUnit) Init(ctx context.Context, input any) error { return nil }

// stubbornUnit ignores its context and outlives the termination bound
type stubbornUnit struct{}

func (u *stubbornUnit) Init(ctx context.Context, input any) error { return nil }

func (u *stubbornUnit) Run(ctx context.Context) error {
	time.Sleep(TerminateWait + 500*time.Millisecond)
	return nil
}

func TestTerminateNilHandle(t *testing.T) {
	err := Terminate(nil)
	if err == nil {
		t.Fatal("expected error for nil handle")
	}
	if !errors.Is(err, liberrors.ErrNoProcess) {
		t.Fatalf("expected ErrNoProcess, got %v", err)
	}
}

func TestTerminateStopsLiveUnit(t *testing.T) {
	registry := lookup.NewRegistry()
	env, err := envelope.New(config.New("t1", nil))
	if err != nil {
		t.Fatalf("envelope failed: %v", err)
	}

	handle, err := spawn.Start(context.Background(), registry, &idleUnit{}, env, testOpts)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := Terminate(handle); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if handle.Alive() {
		t.Fatal("expected unit stopped")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected registration removed, have %d", registry.Len())
	}
}

func TestTerminateTimesOutOnStubbornUnit(t *testing.T) {
	registry := lookup.NewRegistry()
	env, err := envelope.New(config.New("t1", nil))
	if err != nil {
		t.Fatalf("envelope failed: %v", err)
	}

	handle, err := spawn.Start(context.Background(), registry, &stubbornUnit{}, env, testOpts)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { <-handle.Done() }()

	err = Terminate(handle)
	if err == nil {
		t.Fatal("expected termination timeout")
	}
	if !errors.Is(err, liberrors.ErrTerminateTimeout) {
		t.Fatalf("expected ErrTerminateTimeout, got %v", err)
	}
}

func TestTerminateByInputResolvesHandle(t *testing.T) {
	registry := lookup.NewRegistry()
	root := config.New("t1", nil)

	env, err := envelope.New(root)
	if err != nil {
		t.Fatalf("envelope failed: %v", err)
	}
	if _, err := spawn.Start(context.Background(), registry, &idleUnit{}, env, testOpts); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx := ambient.With(context.Background(), ambient.NewStore())
	ambient.StoreConfig(ctx, root)

	if err := TerminateByInput(ctx, registry, &idleUnit{}, nil); err != nil {
		t.Fatalf("TerminateByInput failed: %v", err)
	}
}

func TestTerminateByInputMiss(t *testing.T) {
	registry := lookup.NewRegistry()
	ctx := context.Background()

	err := TerminateByInput(ctx, registry, &idleUnit{}, nil)
	if err == nil || !errors.Is(err, liberrors.ErrNoProcess) {
		t.Fatalf("expected ErrNoProcess, got %v", err)
	}
}
