// Package lookup maps composite (process key, owner) registration keys to
// live unit handles. It is the one genuinely shared, concurrently mutated
// structure in the library, so it provides atomic register/lookup/unregister
// semantics behind a single mutex.
package lookup

import (
	"fmt"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/config"
	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// Key is the composite registration key. Process is either a plain
// unit-type key (one instance per owner) or a compound key for
// multi-instance units; Owner scopes registrations per session.
type Key struct {
	Process config.Key
	Owner   string
}

// String renders the key for error messages
func (k Key) String() string {
	return fmt.Sprintf("(%s, %s)", k.Process, k.Owner)
}

// Entry is the minimal contract a registered handle satisfies
type Entry interface {
	// Alive reports whether the registered unit is still running
	Alive() bool
}

// Registry is an atomic named-lookup table for live units
type Registry struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]Entry)}
}

// Register atomically installs entry under key. A duplicate registration
// fails with ErrAlreadyRegistered and leaves the existing entry in place.
func (r *Registry) Register(key Key, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return errors.NewError("already_registered",
			fmt.Sprintf("unit already registered under %s", key),
			errors.ErrAlreadyRegistered)
	}
	r.entries[key] = entry
	return nil
}

// Lookup returns the live entry for key. A miss is a normal "not found"
// result, not an error.
func (r *Registry) Lookup(key Key) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[key]
	return entry, ok
}

// Unregister removes key; removing an absent key is a no-op
func (r *Registry) Unregister(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Len returns the number of registered units
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
