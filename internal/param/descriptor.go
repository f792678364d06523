// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Descriptor, the atomic unit of kernel configuration.
//
// A kernel is configured exclusively through its descriptors. Each one names a
// variable key, a type, an optional default and a display order; Choice
// descriptors also carry their ordered option list. Keeping the whole contract
// in data lets the pipeline validate a design against a kernel before any
// algorithm runs.
package param

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Descriptor is one typed, named, orderable configuration slot of a kernel.
type Descriptor struct {
	// Name is the variable key, unique within a kernel.
	Name string
	// Label is the human-readable caption.
	Label string
	Type  Type
	// Default is used when the caller does not supply a value. cty.NilVal
	// marks the parameter as required.
	Default cty.Value
	// Options is the ordered option list of a Choice parameter.
	Options []string
	// Order is the display position. Ties keep declaration order.
	Order       int
	Description string
}

// HasDefault reports whether the descriptor declares a default value.
func (d *Descriptor) HasDefault() bool {
	return !d.Default.IsNull()
}

// Validate checks the descriptor on its own: a valid type, options for
// choices, and a default that resolves under the declared type.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("parameter name must not be empty")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("parameter %q: invalid type %d", d.Name, int(d.Type))
	}
	if d.Type == Choice && len(d.Options) == 0 {
		return fmt.Errorf("parameter %q: choice parameters require at least one option", d.Name)
	}
	if d.Type != Choice && len(d.Options) > 0 {
		return fmt.Errorf("parameter %q: only choice parameters may declare options", d.Name)
	}
	if d.Type == Output && d.HasDefault() {
		return fmt.Errorf("parameter %q: output parameters cannot declare a default", d.Name)
	}
	if d.HasDefault() {
		if _, err := coerce(d, d.Default); err != nil {
			return fmt.Errorf("invalid default: %w", err)
		}
	}
	return nil
}

// SortDescriptors orders descriptors by display order, stable on ties.
func SortDescriptors(descs []*Descriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		return descs[i].Order < descs[j].Order
	})
}

// ValidateSet checks every descriptor and the uniqueness of variable keys.
func ValidateSet(descs []*Descriptor) error {
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("duplicate parameter %q", d.Name)
		}
		seen[d.Name] = struct{}{}
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}
