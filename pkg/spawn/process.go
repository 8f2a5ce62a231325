package spawn

import (
	"context"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/ambient"
	"github.com/wehubfusion/Daedalus/pkg/envelope"
	"github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/lookup"
)

// Options holds adapter configuration
type Options struct {
	// Logger receives start/stop events (optional, uses default if nil)
	Logger *zap.Logger
}

// DefaultOptions returns a default adapter configuration
func DefaultOptions() *Options {
	logger, _ := zap.NewProduction()
	return &Options{Logger: logger}
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		logger, _ := zap.NewProduction()
		return logger
	}
	return o.Logger
}

// Start begins concurrent execution of a process unit. It derives the child
// config by extending the envelope config's identity path with the unit's
// process key, registers the handle under (processKey, owner), then on the
// unit's goroutine stores the derived config, executes its callbacks and
// invokes the unit's Init with the envelope input.
//
// Start blocks until Init has completed. A callback fault or Init error is
// a start failure: the registration is removed before Start returns and the
// error surfaces to the caller, exactly as if the unit's own initializer had
// failed. After a successful Init a Runner unit keeps running its Run body;
// any other unit parks until its handle is stopped or the parent context is
// done.
func Start(ctx context.Context, registry *lookup.Registry, unit Unit, env envelope.Envelope, opts *Options) (*Handle, error) {
	if env.Config == nil {
		return nil, errors.NewError("nil_config",
			"envelope requires a config", errors.ErrNilConfig)
	}
	key := ViaKeyFromEnvelope(unit, env)
	return begin(ctx, registry, unit, env, key, opts)
}

// StartSupervisor begins concurrent execution of a supervising unit. The
// derived child key is always the unit's type key and no registration takes
// place: supervisors are not individually addressed. The supervisor's Init
// is responsible for reading ambient.Current itself and explicitly wrapping
// each child it starts; children are deliberately not auto-wrapped so that
// wrapping omissions show up in caller code instead of being hidden.
func StartSupervisor(ctx context.Context, unit Unit, env envelope.Envelope, opts *Options) (*Handle, error) {
	if env.Config == nil {
		return nil, errors.NewError("nil_config",
			"envelope requires a config", errors.ErrNilConfig)
	}
	key := lookup.Key{Process: TypeKey(unit), Owner: env.Config.Root()}
	return begin(ctx, nil, unit, env, key, opts)
}

func begin(ctx context.Context, registry *lookup.Registry, unit Unit, env envelope.Envelope, key lookup.Key, opts *Options) (*Handle, error) {
	if env.Config == nil {
		return nil, errors.NewError("nil_config",
			"envelope requires a config", errors.ErrNilConfig)
	}

	logger := opts.logger()
	derived := env.Config.Derive(key.Process)

	unitCtx, cancel := context.WithCancel(ctx)
	handle := newHandle(key, registry, cancel)

	if registry != nil {
		if err := registry.Register(key, handle); err != nil {
			cancel()
			return nil, err
		}
	}

	store := ambient.NewStore()
	unitCtx = ambient.With(unitCtx, store)

	initDone := make(chan error, 1)

	go func() {
		defer close(handle.done)
		defer cancel()
		if registry != nil {
			defer registry.Unregister(key)
		}

		store.Store(derived)

		if err := derived.ExecuteCallbacks(); err != nil {
			initDone <- err
			return
		}
		if err := unit.Init(unitCtx, env.Input); err != nil {
			initDone <- err
			return
		}
		initDone <- nil

		logger.Debug("unit started",
			zap.String("key", key.String()),
			zap.String("path", derived.DisplayString()),
		)

		if runner, ok := unit.(Runner); ok {
			handle.setErr(runner.Run(unitCtx))
		} else {
			<-unitCtx.Done()
		}
	}()

	if err := <-initDone; err != nil {
		cancel()
		// Wait for the goroutine so the registration is gone before the
		// caller observes the start failure.
		<-handle.done
		logger.Warn("unit failed to start",
			zap.String("key", key.String()),
			zap.String("path", derived.DisplayString()),
			zap.Error(err),
		)
		return nil, err
	}

	return handle, nil
}

// ViaKey returns the composite registration key for explicit owner and input
func ViaKey(owner string, unit Unit, input any) lookup.Key {
	return lookup.Key{Process: ProcessKey(unit, input), Owner: owner}
}

// ViaKeyFromEnvelope derives the owner from the envelope's embedded config
func ViaKeyFromEnvelope(unit Unit, env envelope.Envelope) lookup.Key {
	return ViaKey(env.Config.Root(), unit, env.Input)
}

// ViaKeyCurrent derives the owner from the context's current ambient config
func ViaKeyCurrent(ctx context.Context, unit Unit, input any) lookup.Key {
	return ViaKey(ambient.Current(ctx).Root(), unit, input)
}

// GetHandle resolves a registered unit handle by key. A miss is a normal
// absent result.
func GetHandle(registry *lookup.Registry, key lookup.Key) (*Handle, bool) {
	entry, ok := registry.Lookup(key)
	if !ok {
		return nil, false
	}
	handle, ok := entry.(*Handle)
	return handle, ok
}

// GetHandleCurrent resolves a unit handle using the ambient config's owner
func GetHandleCurrent(ctx context.Context, registry *lookup.Registry, unit Unit, input any) (*Handle, bool) {
	return GetHandle(registry, ViaKeyCurrent(ctx, unit, input))
}

// IsAlive reports whether a unit is registered under key and still running
func IsAlive(registry *lookup.Registry, key lookup.Key) bool {
	handle, ok := GetHandle(registry, key)
	return ok && handle.Alive()
}
