// Package spawn turns "start a unit given an envelope" into "unit runs with
// its config stored in its own ambient slot, callbacks already fired, and a
// derived child identity that includes the unit's own key". Two variants
// exist: registered, individually addressable process units, and
// unregistered supervisor units whose init wraps its own children
// explicitly.
package spawn

import (
	"context"
	"reflect"

	"github.com/wehubfusion/Daedalus/pkg/config"
)

// Unit is the behavior contract for a spawnable unit. Init is invoked on
// the unit's own goroutine after the derived config has been stored and its
// callbacks executed; it has full control over start success or failure.
type Unit interface {
	Init(ctx context.Context, input any) error
}

// Runner is an optional extension for units with a long-running body. When
// implemented, Run is executed on the unit's goroutine after a successful
// Init and the unit stays alive until Run returns.
type Runner interface {
	Run(ctx context.Context) error
}

// Keyer is the polymorphic process-key hook. Units needing multiple
// concurrent instances per owner implement it to derive a compound key from
// their input; ProcessKey must be a pure function of input.
type Keyer interface {
	ProcessKey(input any) config.Key
}

// ProcessKey computes a unit's registration-key component. Units
// implementing Keyer control it; everything else gets the unit-type key,
// making "one instance per owner" the default.
func ProcessKey(unit Unit, input any) config.Key {
	if keyer, ok := unit.(Keyer); ok {
		return keyer.ProcessKey(input)
	}
	return TypeKey(unit)
}

// TypeKey derives a key from the unit's concrete type name, pointer
// indirection stripped.
func TypeKey(unit Unit) config.Key {
	t := reflect.TypeOf(unit)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return config.NewKey(t.Name())
}
