package tracing

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("daedalus-test")

	if cfg.ServiceName != "daedalus-test" {
		t.Fatalf("expected service name daedalus-test, got %s", cfg.ServiceName)
	}
	if cfg.OTLPEndpoint == "" {
		t.Fatal("expected a default OTLP endpoint")
	}
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("expected sample ratio 1.0, got %f", cfg.SampleRatio)
	}
}

func TestSetupReturnsWorkingShutdown(t *testing.T) {
	// The OTLP HTTP exporter dials lazily, so setup and a span-free shutdown
	// complete without a collector listening.
	logger := zap.NewNop()

	shutdown, err := Setup(context.Background(), DefaultConfig("daedalus-test"), logger)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown function")
	}

	if err := Shutdown(shutdown, logger); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestSpanCallbackWithGlobalTracer(t *testing.T) {
	// Whether the global provider is the default no-op or a shut-down real
	// one, the callback runs without a collector listening.
	cb := SpanCallback(nil)

	cfg := config.New("t1", nil).Derive(config.NewKey("Worker"))
	if err := cb(cfg, nil); err != nil {
		t.Fatalf("span callback failed: %v", err)
	}
}

func TestSpanCallbackIsAConfigCallback(t *testing.T) {
	cfg := config.New("t1", nil).AddCallback(config.Callback{Run: SpanCallback(nil)})

	if err := cfg.ExecuteCallbacks(); err != nil {
		t.Fatalf("ExecuteCallbacks failed: %v", err)
	}
}
