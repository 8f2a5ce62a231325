// Package spawntest provides test-support operations for spawned units.
// It is meant to be imported from _test files only; keeping remote
// termination out of the spawn package proper keeps it out of production
// binaries.
package spawntest

import (
	"context"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/errors"
	"github.com/wehubfusion/Daedalus/pkg/lookup"
	"github.com/wehubfusion/Daedalus/pkg/spawn"
)

// TerminateWait bounds how long Terminate waits for a unit to stop
const TerminateWait = time.Second

// Terminate signals the unit behind handle to stop and blocks until its
// termination is observed or TerminateWait elapses. A nil handle fails
// immediately with ErrNoProcess; a timeout is returned as an error value,
// not raised.
func Terminate(handle *spawn.Handle) error {
	if handle == nil {
		return errors.NewError("no_process",
			"no process found to terminate", errors.ErrNoProcess)
	}
	handle.Stop()
	select {
	case <-handle.Done():
		return nil
	case <-time.After(TerminateWait):
		return errors.NewError("terminate_timeout",
			"unit did not stop within bound", errors.ErrTerminateTimeout)
	}
}

// TerminateByInput resolves the unit registered for (unit, input) under the
// ambient config's owner and terminates it.
func TerminateByInput(ctx context.Context, registry *lookup.Registry, unit spawn.Unit, input any) error {
	handle, ok := spawn.GetHandleCurrent(ctx, registry, unit, input)
	if !ok {
		return errors.NewError("no_process",
			"no process found to terminate", errors.ErrNoProcess)
	}
	return Terminate(handle)
}
