// Package ambient provides the per-execution-unit slot holding "the current
// config" plus a context.Context carrier tier. The core API in pkg/config is
// explicit; this package is the convenience layer the spawn and task
// adapters install at the edges, so business code can read its config
// without threading it by hand.
//
// A Store belongs to exactly one execution unit. Adapters create a fresh
// Store per spawned unit, so no two goroutines ever share a slot; the mutex
// only guards against a unit reading its own slot from helper goroutines.
package ambient

import (
	"context"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/config"
)

// Store is a single mutable slot holding at most one config
type Store struct {
	mu  sync.Mutex
	cfg *config.Config
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Store replaces the slot's value and returns it for chaining
func (s *Store) Store(cfg *config.Config) *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return cfg
}

// Current returns the stored config, or config.Defaults() if nothing was
// ever stored in this unit.
func (s *Store) Current() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return config.Defaults()
	}
	return s.cfg
}

type storeCtxKey struct{}

// With returns a context carrying the given store. Adapters call this once
// per spawned unit before handing the context to user code.
func With(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, storeCtxKey{}, store)
}

// FromContext extracts the context's store, or nil when the context was not
// produced by an adapter.
func FromContext(ctx context.Context) *Store {
	store, _ := ctx.Value(storeCtxKey{}).(*Store)
	return store
}

// Current reads the current config from the context's store. A context with
// no store behaves like a fresh unit and yields config.Defaults().
func Current(ctx context.Context) *config.Config {
	if store := FromContext(ctx); store != nil {
		return store.Current()
	}
	return config.Defaults()
}

// StoreConfig writes cfg into the context's store and returns cfg. Writing
// to a context with no store is a no-op apart from returning cfg, matching
// the "explicit tier stays authoritative" design.
func StoreConfig(ctx context.Context, cfg *config.Config) *config.Config {
	if store := FromContext(ctx); store != nil {
		return store.Store(cfg)
	}
	return cfg
}

// Get reads a key from the current config
func Get(ctx context.Context, key string) (any, error) {
	return Current(ctx).Get(key)
}

// Put applies config.Put to the current config and re-stores the result,
// returning the updated config.
func Put(ctx context.Context, key string, value any) (*config.Config, error) {
	updated, err := Current(ctx).Put(key, value)
	if err != nil {
		return nil, err
	}
	return StoreConfig(ctx, updated), nil
}

// AddCallback appends a callback descriptor to the current config and
// re-stores the result.
func AddCallback(ctx context.Context, cb config.Callback) *config.Config {
	return StoreConfig(ctx, Current(ctx).AddCallback(cb))
}
