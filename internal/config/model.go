// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package config

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of the entire
// application configuration.
type Model struct {
	// Kernels are keyed by kernel name.
	Kernels map[string]*KernelDefinition
	// Machines are keyed by machine name.
	Machines map[string]*machine.Spec
	Designs  []*Design
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Kernels:  make(map[string]*KernelDefinition),
		Machines: make(map[string]*machine.Spec),
	}
}

// Design returns the design with the given name.
func (m *Model) Design(name string) (*Design, bool) {
	for _, d := range m.Designs {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Machine resolves a machine reference. An empty name selects
// machine.Default().
func (m *Model) Machine(name string) (*machine.Spec, error) {
	if name == "" {
		return machine.Default(), nil
	}
	spec, ok := m.Machines[name]
	if !ok {
		return nil, fmt.Errorf("unknown machine %q", name)
	}
	return spec, nil
}

// --- Design Models ---

// Design is one pulse design: an ordered chain of transforms plus the
// design-wide settings and the machine it targets.
type Design struct {
	ID      string
	Name    string
	Comment string
	// MachineName references a machine block. Empty selects the default.
	MachineName string
	Settings    machine.Settings
	Transforms  []*Transform
	// Dir is the directory relative file references resolve against.
	Dir string
}

// DesignNamespace seeds the deterministic ids of designs that do not
// declare one.
var DesignNamespace = uuid.MustParse("6f1b6c1e-3c0e-4d6e-9a4f-5b2d8e7f1a90")

// DesignID returns the id a design named name receives when none is
// declared.
func DesignID(name string) string {
	return uuid.NewSHA1(DesignNamespace, []byte(name)).String()
}

// Validate checks the design shape: a name, valid settings and contiguous
// progressions starting at 0.
func (d *Design) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("design must have a name")
	}
	if err := d.Settings.Validate(); err != nil {
		return fmt.Errorf("design %q: %w", d.Name, err)
	}
	for i, t := range d.Transforms {
		if t.Progression != i {
			return fmt.Errorf("design %q: transform %d has progression %d, progressions must be contiguous from 0", d.Name, i, t.Progression)
		}
		if t.Kernel == "" {
			return fmt.Errorf("design %q: transform %d names no kernel", d.Name, i)
		}
	}
	return nil
}

// Clone returns a deep copy whose transforms can be edited independently.
func (d *Design) Clone() *Design {
	out := *d
	out.Transforms = make([]*Transform, len(d.Transforms))
	for i, t := range d.Transforms {
		out.Transforms[i] = t.Clone()
	}
	return &out
}

// Renumber rewrites progressions to match slice positions.
func (d *Design) Renumber() {
	for i, t := range d.Transforms {
		t.Progression = i
	}
}

// Transform is one stage of a design: a kernel reference and its raw
// parameter values.
type Transform struct {
	Progression int
	// Kernel is the kernel name.
	Kernel string
	// KernelID pins the kernel identity when set; a mismatch with the
	// loaded definition is an error.
	KernelID string
	Raw      map[string]cty.Value
}

// Clone returns a copy with its own Raw map.
func (t *Transform) Clone() *Transform {
	out := *t
	out.Raw = make(map[string]cty.Value, len(t.Raw))
	for k, v := range t.Raw {
		out.Raw[k] = v
	}
	return &out
}

// --- Kernel Manifest Models ---

// KernelDefinition is the format-agnostic representation of a kernel
// manifest.
type KernelDefinition struct {
	// ID is a UUID that stays fixed for the lifetime of the definition.
	ID      string
	Name    string
	Version int
	// MenuLabel is the short caption shown in kernel listings.
	MenuLabel string
	// Algorithm names the compiled variant that runs this kernel.
	Algorithm   string
	Description string
	// StandardFields lists the visible standard parameters.
	StandardFields []string
	Parameters     []*param.Descriptor
	// Source is the file the definition was read from.
	Source string
}

// Descriptors returns the standard and kernel-specific descriptors in
// display order.
func (k *KernelDefinition) Descriptors() []*param.Descriptor {
	out := make([]*param.Descriptor, 0, len(k.StandardFields)+len(k.Parameters))
	for _, name := range k.StandardFields {
		if d, ok := StandardDescriptor(name); ok {
			out = append(out, d)
		}
	}
	out = append(out, k.Parameters...)
	param.SortDescriptors(out)
	return out
}

// Validate checks identity fields, standard field names and the descriptor
// set.
func (k *KernelDefinition) Validate() error {
	if k.Name == "" {
		return fmt.Errorf("kernel definition must have a name")
	}
	if _, err := uuid.Parse(k.ID); err != nil {
		return fmt.Errorf("kernel %q: id %q is not a UUID: %w", k.Name, k.ID, err)
	}
	if k.Version < 1 {
		return fmt.Errorf("kernel %q: version must be at least 1", k.Name)
	}
	if k.Algorithm == "" {
		return fmt.Errorf("kernel %q: algorithm must be set", k.Name)
	}
	for _, name := range k.StandardFields {
		if _, ok := StandardDescriptor(name); !ok {
			return fmt.Errorf("kernel %q: unknown standard field %q", k.Name, name)
		}
	}
	if err := param.ValidateSet(k.Descriptors()); err != nil {
		return fmt.Errorf("kernel %q: %w", k.Name, err)
	}
	return nil
}
