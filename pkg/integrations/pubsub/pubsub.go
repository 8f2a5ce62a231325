// Package pubsub gives each test session an isolated pub/sub namespace on
// NATS. Install performs the eager dependency check and namespace
// bootstrap at setup time, before any unit spawns; the registered callback
// re-attaches every derived unit to the session's broker when that unit
// starts.
package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/config"
	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// ContextKey is the config context key holding the session's namespace name
const ContextKey = "pubsub_name"

// Options holds configuration for the pub/sub integration
type Options struct {
	// Conn is an existing NATS connection (takes precedence over URL)
	Conn *nats.Conn

	// URL is the NATS server URL dialed when no connection is supplied
	URL string

	// Name is the namespace name; generated when empty
	Name string

	// ConnectTimeout bounds dialing (default: 5s)
	ConnectTimeout time.Duration

	// PublishMaxRetries is the maximum number of publish retry attempts (default: 3)
	PublishMaxRetries int

	// RetryDelay is the delay between publish retries (default: 1s)
	RetryDelay time.Duration

	// Logger is a custom logger instance (optional, uses default if nil)
	Logger *zap.Logger
}

// DefaultOptions returns a default configuration
func DefaultOptions() *Options {
	logger, _ := zap.NewProduction()
	return &Options{
		ConnectTimeout:    5 * time.Second,
		PublishMaxRetries: 3,
		RetryDelay:        time.Second,
		Logger:            logger,
	}
}

// Broker is a session-scoped pub/sub handle. Every subject is prefixed with
// the namespace name so concurrent sessions never observe each other's
// messages.
type Broker struct {
	conn   *nats.Conn
	name   string
	owned  bool
	logger *zap.Logger

	maxRetries int
	retryDelay time.Duration
}

// Name returns the broker's namespace name
func (b *Broker) Name() string {
	return b.name
}

func (b *Broker) subject(s string) string {
	return b.name + "." + s
}

// Publish sends data on the namespaced subject, retrying per the install
// options.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	var lastErr error

	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			b.logger.Info("Retrying publish",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", b.maxRetries+1),
				zap.String("subject", b.subject(subject)),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("publish cancelled during retry: %w", ctx.Err())
			case <-time.After(b.retryDelay):
			}
		}

		err := b.conn.Publish(b.subject(subject), data)
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Warn("Publish attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("subject", b.subject(subject)),
			zap.Error(err),
		)
	}

	return fmt.Errorf("publish failed after %d attempts: %w", b.maxRetries+1, lastErr)
}

// Subscribe installs handler on the namespaced subject
func (b *Broker) Subscribe(subject string, handler func(data []byte)) (*nats.Subscription, error) {
	return b.conn.Subscribe(b.subject(subject), func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close tears the broker down, closing the connection only when the
// integration dialed it itself.
func (b *Broker) Close() {
	brokers.mu.Lock()
	delete(brokers.byName, b.name)
	brokers.mu.Unlock()

	if b.owned && b.conn != nil {
		b.conn.Close()
	}
}

var brokers = struct {
	mu     sync.RWMutex
	byName map[string]*Broker
}{byName: make(map[string]*Broker)}

// Install verifies the pub/sub dependency, bootstraps an isolated namespace
// and returns a new config carrying the namespace under ContextKey plus the
// Setup callback. A missing dependency (neither connection nor URL) fails
// eagerly with ErrMissingDependency so misconfiguration surfaces before any
// unit spawns.
func Install(cfg *config.Config, opts *Options) (*config.Config, error) {
	if cfg == nil {
		return nil, errors.NewError("nil_config",
			"pubsub install requires a config", errors.ErrNilConfig)
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	if opts.Conn == nil && opts.URL == "" {
		return nil, errors.NewError("pubsub_unavailable",
			"pub/sub integration requires a NATS connection or URL", errors.ErrMissingDependency)
	}

	conn := opts.Conn
	owned := false
	if conn == nil {
		timeout := opts.ConnectTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		dialed, err := nats.Connect(opts.URL,
			nats.Name("daedalus-pubsub"),
			nats.Timeout(timeout),
		)
		if err != nil {
			return nil, errors.NewError("pubsub_connect",
				fmt.Sprintf("failed to connect to NATS at %s", opts.URL), err)
		}
		conn = dialed
		owned = true
	}

	name := opts.Name
	if name == "" {
		name = "daedalus-" + uuid.NewString()
	}

	maxRetries := opts.PublishMaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	broker := &Broker{
		conn:       conn,
		name:       name,
		owned:      owned,
		logger:     logger,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}

	brokers.mu.Lock()
	brokers.byName[name] = broker
	brokers.mu.Unlock()

	logger.Info("pub/sub namespace installed",
		zap.String("name", name),
		zap.String("owner", cfg.Owner()),
	)

	withCallback := cfg.AddCallback(config.Callback{
		Run:  Setup,
		Args: map[string]any{"name": name},
	})
	return withCallback.Put(ContextKey, name)
}

// Setup is the bootstrap callback executed once per spawned unit. It
// resolves the session's namespace (args override the config context) and
// verifies the broker is installed; an absent broker is a configuration
// fault, not a silent miss.
func Setup(cfg *config.Config, args map[string]any) error {
	name := ""
	if args != nil {
		if v, ok := args["name"].(string); ok {
			name = v
		}
	}
	if name == "" {
		v, err := cfg.Get(ContextKey)
		if err != nil {
			return errors.NewError("pubsub_unavailable",
				"no pub/sub namespace on config "+cfg.DisplayString(), errors.ErrMissingDependency)
		}
		name, _ = v.(string)
	}

	brokers.mu.RLock()
	_, ok := brokers.byName[name]
	brokers.mu.RUnlock()
	if !ok {
		return errors.NewError("pubsub_unavailable",
			fmt.Sprintf("pub/sub namespace %q is not installed", name), errors.ErrMissingDependency)
	}
	return nil
}

// Lookup resolves the broker for the config's namespace
func Lookup(cfg *config.Config) (*Broker, error) {
	v, err := cfg.Get(ContextKey)
	if err != nil {
		return nil, errors.NewError("pubsub_unavailable",
			"no pub/sub namespace on config "+cfg.DisplayString(), errors.ErrMissingDependency)
	}
	name, _ := v.(string)

	brokers.mu.RLock()
	broker, ok := brokers.byName[name]
	brokers.mu.RUnlock()
	if !ok {
		return nil, errors.NewError("pubsub_unavailable",
			fmt.Sprintf("pub/sub namespace %q is not installed", name), errors.ErrMissingDependency)
	}
	return broker, nil
}
