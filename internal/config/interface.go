package config

import (
	"context"

	"github.com/specialistvlad/pulsegrid/internal/param"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding and type
// conversion implementation. It acts as the bridge between resolved
// parameter values and the Go input structs used by kernels.
type Converter interface {
	// DecodeParams populates the tagged fields of inputStruct, which must be
	// a non-nil pointer to a struct, from resolved parameter values.
	DecodeParams(ctx context.Context, inputStruct any, values *param.Values) error
}
