// Package sandbox gives each test session an isolated data keyspace on
// Redis. Install performs the eager dependency check at setup time; the
// Allow callback grants every derived unit access to the owning session's
// keyspace when that unit starts, so access from a unit that was never
// wrapped fails loudly instead of leaking into another session's data.
package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/config"
	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// ContextKey is the config context key holding the sandbox owner
const ContextKey = "sandbox_owner"

// Options holds configuration for the sandbox integration
type Options struct {
	// Client is an existing Redis client (takes precedence over Addr)
	Client *redis.Client

	// Addr is the Redis address dialed when no client is supplied
	Addr string

	// DB selects the Redis database when dialing
	DB int

	// Logger is a custom logger instance (optional, uses default if nil)
	Logger *zap.Logger
}

// DefaultOptions returns a default configuration
func DefaultOptions() *Options {
	logger, _ := zap.NewProduction()
	return &Options{Logger: logger}
}

// Sandbox is a session-scoped keyspace. All keys live under
// "sandbox:{owner}:" and only units whose identity path was allowed may
// touch them.
type Sandbox struct {
	client *redis.Client
	owner  string
	prefix string
	owned  bool
	logger *zap.Logger

	mu      sync.Mutex
	allowed map[string]bool
}

var sandboxes = struct {
	mu      sync.RWMutex
	byOwner map[string]*Sandbox
}{byOwner: make(map[string]*Sandbox)}

// Install verifies the Redis dependency, registers a sandbox for the
// config's owner and returns a new config carrying the owner under
// ContextKey plus the Allow callback. A missing dependency (neither client
// nor address) fails eagerly with ErrMissingDependency, before any unit
// spawns.
func Install(cfg *config.Config, opts *Options) (*config.Config, error) {
	if cfg == nil {
		return nil, errors.NewError("nil_config",
			"sandbox install requires a config", errors.ErrNilConfig)
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	if opts.Client == nil && opts.Addr == "" {
		return nil, errors.NewError("sandbox_unavailable",
			"sandbox integration requires a Redis client or address", errors.ErrMissingDependency)
	}

	client := opts.Client
	owned := false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr: opts.Addr,
			DB:   opts.DB,
		})
		owned = true
	}

	owner := cfg.Owner()
	sb := &Sandbox{
		client:  client,
		owner:   owner,
		prefix:  "sandbox:" + owner + ":",
		owned:   owned,
		logger:  logger,
		allowed: map[string]bool{cfg.DisplayString(): true},
	}

	sandboxes.mu.Lock()
	sandboxes.byOwner[owner] = sb
	sandboxes.mu.Unlock()

	logger.Info("sandbox installed",
		zap.String("owner", owner),
		zap.String("prefix", sb.prefix),
	)

	withCallback := cfg.AddCallback(config.Callback{Run: Allow})
	return withCallback.Put(ContextKey, owner)
}

// Allow is the allowance callback executed once per spawned unit. It grants
// the unit's identity path access to its owner's sandbox; args may carry an
// "ancestor" string recorded for attribution.
func Allow(cfg *config.Config, args map[string]any) error {
	sb, err := lookup(cfg)
	if err != nil {
		return err
	}

	ancestor := ""
	if args != nil {
		if v, ok := args["ancestor"].(string); ok {
			ancestor = v
		}
	}

	sb.mu.Lock()
	sb.allowed[cfg.DisplayString()] = true
	sb.mu.Unlock()

	sb.logger.Debug("sandbox access allowed",
		zap.String("owner", sb.owner),
		zap.String("path", cfg.DisplayString()),
		zap.String("ancestor", ancestor),
	)
	return nil
}

// Keyspace resolves the namespaced keyspace for a unit's config. A unit
// whose identity path was never allowed gets a structured error.
func Keyspace(cfg *config.Config) (*Keys, error) {
	sb, err := lookup(cfg)
	if err != nil {
		return nil, err
	}

	sb.mu.Lock()
	ok := sb.allowed[cfg.DisplayString()]
	sb.mu.Unlock()
	if !ok {
		return nil, errors.NewError("sandbox_denied",
			fmt.Sprintf("unit %s was not allowed into sandbox %q", cfg.DisplayString(), sb.owner),
			nil)
	}
	return &Keys{sb: sb}, nil
}

func lookup(cfg *config.Config) (*Sandbox, error) {
	owner := cfg.Root()
	sandboxes.mu.RLock()
	sb, ok := sandboxes.byOwner[owner]
	sandboxes.mu.RUnlock()
	if !ok {
		return nil, errors.NewError("sandbox_unavailable",
			fmt.Sprintf("no sandbox installed for owner %q", owner), errors.ErrMissingDependency)
	}
	return sb, nil
}

// Keys is a namespaced Set/Get/Del wrapper over the session's Redis client
type Keys struct {
	sb *Sandbox
}

// Set stores value under the namespaced key
func (k *Keys) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return k.sb.client.Set(ctx, k.sb.prefix+key, value, ttl).Err()
}

// Get reads the namespaced key; a miss fails with ErrKeyNotFound
func (k *Keys) Get(ctx context.Context, key string) (string, error) {
	value, err := k.sb.client.Get(ctx, k.sb.prefix+key).Result()
	if err == redis.Nil {
		return "", errors.NewError("key_not_found",
			fmt.Sprintf("key %q not set in sandbox %q", key, k.sb.owner),
			errors.ErrKeyNotFound)
	}
	return value, err
}

// Del removes the namespaced keys
func (k *Keys) Del(ctx context.Context, keys ...string) error {
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = k.sb.prefix + key
	}
	return k.sb.client.Del(ctx, namespaced...).Err()
}

// Purge removes every key in the sandbox's prefix, scanning in batches
func (s *Sandbox) Purge(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close unregisters the sandbox, closing the client only when the
// integration dialed it itself.
func (s *Sandbox) Close() error {
	sandboxes.mu.Lock()
	delete(sandboxes.byOwner, s.owner)
	sandboxes.mu.Unlock()

	if s.owned {
		return s.client.Close()
	}
	return nil
}

// Lookup resolves the sandbox registered for a config's owner
func Lookup(cfg *config.Config) (*Sandbox, error) {
	return lookup(cfg)
}
