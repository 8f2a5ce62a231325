// Package config holds the blueprint value threaded through a test session:
// an owner identifier, an identity path locating each spawned unit in the
// spawn tree, an open-ended context map, and an ordered list of deferred
// callbacks executed once per spawned unit. Config values are immutable;
// every mutation returns a new value, so a config captured before a spawn is
// always safe to share across goroutines without synchronization.
package config

import (
	"fmt"
	"unicode/utf8"

	"github.com/wehubfusion/Daedalus/pkg/errors"
)

const (
	// DefaultOwner is the reserved owner of the process-wide default config
	DefaultOwner = "global"

	// MaxOwnerLen bounds owners derived from structured session descriptors.
	// Longer joined descriptors keep the suffix and drop the prefix, since
	// the test name carries more identity than the module path.
	MaxOwnerLen = 200

	// SessionSeparator joins session descriptor fields into one owner
	SessionSeparator = "/"
)

// Protected config keys. Get resolves them to struct fields; Put rejects
// them with ErrProtectedKey.
const (
	KeyOwner     = "owner"
	KeyPath      = "path"
	KeyCallbacks = "callbacks"
)

// CallbackFunc is a deferred invocable registered on a config. It receives
// the config of the unit executing it and the args captured at registration
// time (nil when registered without args).
type CallbackFunc func(cfg *Config, args map[string]any) error

// Callback pairs a callback function with its captured arguments
type Callback struct {
	Run  CallbackFunc
	Args map[string]any
}

// Options seeds a new config
type Options struct {
	// Context seeds the config's key/value context
	Context map[string]any

	// Callbacks seeds the config's deferred callback list
	Callbacks []Callback
}

// Config is the blueprint value. The zero value is not usable; construct
// via New, NewForTest or Defaults.
type Config struct {
	owner     string
	path      Path
	context   map[string]any
	callbacks []Callback
}

// New creates a root config for the given owner. The identity path starts
// as (owner); context and callbacks are seeded from opts when non-nil.
func New(owner string, opts *Options) *Config {
	cfg := &Config{
		owner:   owner,
		path:    Path{NewKey(owner)},
		context: map[string]any{},
	}
	if opts != nil {
		for k, v := range opts.Context {
			cfg.context[k] = v
		}
		cfg.callbacks = append(cfg.callbacks, opts.Callbacks...)
	}
	return cfg
}

// NewForTest creates a root config from a structured session descriptor,
// joining module and test name into a single owner bounded at MaxOwnerLen
// bytes (suffix kept, prefix dropped). The cut never splits a rune: when it
// would land mid-sequence it moves forward to the next rune boundary.
func NewForTest(module, testName string, opts *Options) *Config {
	owner := module + SessionSeparator + testName
	if len(owner) > MaxOwnerLen {
		cut := len(owner) - MaxOwnerLen
		for cut < len(owner) && !utf8.RuneStart(owner[cut]) {
			cut++
		}
		owner = owner[cut:]
	}
	return New(owner, opts)
}

// Defaults returns the process-wide default config used whenever a unit has
// nothing stored. It is a pure function of the reserved owner: empty context,
// no callbacks.
func Defaults() *Config {
	return New(DefaultOwner, nil)
}

// Owner returns the root identifier, equal to Path()[0].Name
func (c *Config) Owner() string {
	return c.owner
}

// Path returns the identity path. The returned slice must not be mutated.
func (c *Config) Path() Path {
	return c.path
}

// Callbacks returns a copy of the registered callback descriptors
func (c *Config) Callbacks() []Callback {
	out := make([]Callback, len(c.callbacks))
	copy(out, c.callbacks)
	return out
}

// Get looks up a key. The protected keys resolve to the corresponding
// struct fields; any other key is resolved against the context map and
// misses fail with ErrKeyNotFound.
func (c *Config) Get(key string) (any, error) {
	switch key {
	case KeyOwner:
		return c.owner, nil
	case KeyPath:
		return c.path, nil
	case KeyCallbacks:
		return c.Callbacks(), nil
	}
	value, ok := c.context[key]
	if !ok {
		return nil, errors.NewError("key_not_found",
			fmt.Sprintf("key %q not set on config %s", key, c.DisplayString()),
			errors.ErrKeyNotFound)
	}
	return value, nil
}

// Put returns a new config with context[key] = value and, as an observable
// side effect, runs the new config's callbacks before returning it. Writing
// a protected key fails with ErrProtectedKey and leaves the receiver usable
// and unchanged. A callback fault fails the put; no new config is produced.
func (c *Config) Put(key string, value any) (*Config, error) {
	switch key {
	case KeyOwner, KeyPath, KeyCallbacks:
		return nil, errors.NewError("protected_key",
			fmt.Sprintf("key %q cannot be set on config %s", key, c.DisplayString()),
			errors.ErrProtectedKey)
	}
	updated := c.clone()
	updated.context[key] = value
	if err := updated.ExecuteCallbacks(); err != nil {
		return nil, err
	}
	return updated, nil
}

// AddCallback returns a new config with the descriptor appended
func (c *Config) AddCallback(cb Callback) *Config {
	updated := c.clone()
	updated.callbacks = append(updated.callbacks, cb)
	return updated
}

// ExecuteCallbacks invokes every registered callback against this config,
// in registration order, synchronously. Return values are ignored except
// for errors: the first failing callback stops execution and its fault is
// returned wrapped; the core never retries.
func (c *Config) ExecuteCallbacks() error {
	for i, cb := range c.callbacks {
		if err := cb.Run(c, cb.Args); err != nil {
			return errors.NewError("callback_fault",
				fmt.Sprintf("callback %d failed for %s", i, c.DisplayString()),
				err)
		}
	}
	return nil
}

// Derive returns the child config for a unit identified by key: the
// identity path is extended by key (idempotent when key already is the last
// element, in which case the receiver is returned unchanged) and context and
// callbacks are carried over by copy.
func (c *Config) Derive(key Key) *Config {
	if len(c.path) > 0 && c.path.Last() == key {
		return c
	}
	derived := c.clone()
	derived.path = c.path.Extend(key)
	return derived
}

// Root returns the first path element's name, i.e. the owner
func (c *Config) Root() string {
	return c.path.Root().Name
}

// DisplayString renders the identity path for logs and error messages
func (c *Config) DisplayString() string {
	return c.path.String()
}

// clone copies the config with fresh context map and callback slice so the
// copy-on-write contract holds.
func (c *Config) clone() *Config {
	cloned := &Config{
		owner:   c.owner,
		path:    c.path,
		context: make(map[string]any, len(c.context)),
	}
	for k, v := range c.context {
		cloned.context[k] = v
	}
	cloned.callbacks = append(cloned.callbacks, c.callbacks...)
	return cloned
}
