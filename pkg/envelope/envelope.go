// Package envelope pairs a config with opaque caller-supplied input so both
// cross a spawn boundary in one argument.
package envelope

import (
	"github.com/wehubfusion/Daedalus/pkg/config"
	"github.com/wehubfusion/Daedalus/pkg/errors"
)

// Envelope carries a config and the input for a unit's initializer. It is
// created by the caller immediately before spawning and consumed exactly
// once by the corresponding adapter. Immutable after construction.
type Envelope struct {
	Config *config.Config
	Input  any
}

// New constructs an envelope without input
func New(cfg *config.Config) (Envelope, error) {
	return WithInput(cfg, nil)
}

// WithInput constructs an envelope carrying input. The config is required;
// input may be nil.
func WithInput(cfg *config.Config, input any) (Envelope, error) {
	if cfg == nil {
		return Envelope{}, errors.NewError("nil_config",
			"envelope requires a config", errors.ErrNilConfig)
	}
	return Envelope{Config: cfg, Input: input}, nil
}
