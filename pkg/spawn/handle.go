package spawn

import (
	"context"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/lookup"
)

// Handle is a live reference to a spawned unit. It satisfies lookup.Entry
// so registered units can be resolved and health-checked by key.
type Handle struct {
	key      lookup.Key
	registry *lookup.Registry // nil for supervisor units
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.Mutex
	runErr error
}

func newHandle(key lookup.Key, registry *lookup.Registry, cancel context.CancelFunc) *Handle {
	return &Handle{
		key:      key,
		registry: registry,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Key returns the handle's registration key
func (h *Handle) Key() lookup.Key {
	return h.key
}

// Alive reports whether the unit's goroutine is still running
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Stop signals the unit to shut down. It does not wait; use Done to observe
// termination.
func (h *Handle) Stop() {
	h.cancel()
}

// Done is closed when the unit's goroutine has exited and its registration
// (if any) has been removed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the error the unit's Run body exited with, if any. Only
// meaningful once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runErr
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runErr = err
}
