// This file contains the Go structs that gohcl decodes raw HCL blocks into
// before they are translated into the format-agnostic config model.

package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Kernels  []*KernelBlock  `hcl:"kernel,block"`
	Machines []*MachineBlock `hcl:"machine,block"`
	Designs  []*DesignBlock  `hcl:"design,block"`
}

// KernelBlock is a `kernel "<name>" { ... }` manifest.
type KernelBlock struct {
	Name           string            `hcl:"name,label"`
	ID             string            `hcl:"id"`
	Version        int               `hcl:"version,optional"`
	MenuLabel      string            `hcl:"menu_label,optional"`
	Algorithm      string            `hcl:"algorithm,optional"`
	Description    string            `hcl:"description,optional"`
	StandardFields []string          `hcl:"standard_fields,optional"`
	Parameters     []*ParameterBlock `hcl:"parameter,block"`
}

// ParameterBlock is a `parameter "<name>" { ... }` block inside a kernel.
type ParameterBlock struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Label       string         `hcl:"label,optional"`
	Options     []string       `hcl:"options,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
	Order       *int           `hcl:"order,optional"`
	Description string         `hcl:"description,optional"`
}

// MachineBlock is a `machine "<name>" { ... }` block. Its attributes are
// decoded in a second pass on top of the default machine.
type MachineBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// machineAttrs mirrors machine.Spec for decoding.
type machineAttrs struct {
	MaxB1Field         float64 `hcl:"max_b1_field,optional"`
	FieldStrength      float64 `hcl:"field_strength,optional"`
	MinDwellTime       float64 `hcl:"min_dwell_time,optional"`
	DwellTimeIncrement float64 `hcl:"dwell_time_increment,optional"`
	GradientRasterTime float64 `hcl:"gradient_raster_time,optional"`
	GradientSlewRate   float64 `hcl:"gradient_slew_rate,optional"`
	GradientMaximum    float64 `hcl:"gradient_maximum,optional"`
	ZeroPadding        int     `hcl:"zero_padding,optional"`
}

// DesignBlock is a `design "<name>" { ... }` block. Its body is walked by
// hand because transform bodies are free-form parameter maps.
type DesignBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// designBodySchema is the HCL schema for the body of a `design` block.
var designBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "id"},
		{Name: "comment"},
		{Name: "machine"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "settings"},
		{Type: "transform", LabelNames: []string{"kernel"}},
	},
}

// settingsBodySchema is the HCL schema for the body of a `settings` block.
var settingsBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "calc_resolution"},
		{Name: "bandwidth_type"},
	},
}

// kernelIDAttr pins a transform to a kernel identity. It is the only
// reserved attribute name inside a transform block.
const kernelIDAttr = "kernel_id"
