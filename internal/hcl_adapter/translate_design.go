// This file contains the logic for translating machine and design blocks
// into the format-agnostic configuration model.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulsehcl"
	"github.com/zclconf/go-cty/cty"
)

// translateMachine decodes a machine block on top of machine.Default(), so
// omitted limits keep their defaults.
func (l *Loader) translateMachine(m *MachineBlock) (*machine.Spec, hcl.Diagnostics) {
	base := machine.Default()
	attrs := machineAttrs{
		MaxB1Field:         base.MaxB1Field,
		FieldStrength:      base.FieldStrength,
		MinDwellTime:       base.MinDwellTime,
		DwellTimeIncrement: base.DwellTimeIncrement,
		GradientRasterTime: base.GradientRasterTime,
		GradientSlewRate:   base.GradientSlewRate,
		GradientMaximum:    base.GradientMaximum,
		ZeroPadding:        base.ZeroPadding,
	}
	diags := gohcl.DecodeBody(m.Body, nil, &attrs)
	if diags.HasErrors() {
		return nil, diags
	}

	spec := &machine.Spec{
		Name:               m.Name,
		MaxB1Field:         attrs.MaxB1Field,
		FieldStrength:      attrs.FieldStrength,
		MinDwellTime:       attrs.MinDwellTime,
		DwellTimeIncrement: attrs.DwellTimeIncrement,
		GradientRasterTime: attrs.GradientRasterTime,
		GradientSlewRate:   attrs.GradientSlewRate,
		GradientMaximum:    attrs.GradientMaximum,
		ZeroPadding:        attrs.ZeroPadding,
	}
	if err := spec.Validate(); err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid machine",
			Detail:   err.Error(),
			Subject:  m.Body.MissingItemRange().Ptr(),
		})
		return nil, diags
	}
	return spec, diags
}

// translateDesign walks a design body: identity attributes, an optional
// unique settings block and the ordered transform blocks.
func (l *Loader) translateDesign(ctx context.Context, d *DesignBlock, dir string) (*config.Design, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx).With("design", d.Name)
	logger.Debug("Translating HCL design to internal config model.")

	content, diags := d.Body.Content(designBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}

	design := &config.Design{
		Name:     d.Name,
		ID:       config.DesignID(d.Name),
		Settings: machine.DefaultSettings(),
		Dir:      dir,
	}

	if attr, ok := content.Attributes["id"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &design.ID)...)
	}
	if attr, ok := content.Attributes["comment"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &design.Comment)...)
	}
	if attr, ok := content.Attributes["machine"]; ok {
		name, refDiags := pulsehcl.Reference(attr.Expr, "machine")
		diags = append(diags, refDiags...)
		design.MachineName = name
	}

	settingsBlock, blockDiags := pulsehcl.FindUniqueBlock(content.Blocks, "settings")
	diags = append(diags, blockDiags...)
	if settingsBlock != nil {
		settings, sDiags := translateSettings(settingsBlock)
		diags = append(diags, sDiags...)
		design.Settings = settings
	}

	for i, block := range content.Blocks.OfType("transform") {
		t, tDiags := translateTransform(block, i)
		diags = append(diags, tDiags...)
		if t != nil {
			design.Transforms = append(design.Transforms, t)
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}
	if err := design.Validate(); err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid design",
			Detail:   err.Error(),
			Subject:  d.Body.MissingItemRange().Ptr(),
		})
		return nil, diags
	}
	logger.Debug("Design translated.", "transforms", len(design.Transforms))
	return design, diags
}

func translateSettings(block *hcl.Block) (machine.Settings, hcl.Diagnostics) {
	settings := machine.DefaultSettings()
	content, diags := block.Body.Content(settingsBodySchema)
	if diags.HasErrors() {
		return settings, diags
	}
	if attr, ok := content.Attributes["calc_resolution"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &settings.CalcResolution)...)
	}
	if attr, ok := content.Attributes["bandwidth_type"]; ok {
		var name string
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &name)...)
		bt, err := machine.ParseBandwidthType(name)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid bandwidth type",
				Detail:   err.Error(),
				Subject:  attr.Expr.Range().Ptr(),
			})
		}
		settings.BandwidthType = bt
	}
	return settings, diags
}

// translateTransform reads a transform body as plain attributes. Every
// attribute except kernel_id is a raw parameter value.
func translateTransform(block *hcl.Block, progression int) (*config.Transform, hcl.Diagnostics) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	t := &config.Transform{
		Progression: progression,
		Kernel:      block.Labels[0],
		Raw:         make(map[string]cty.Value, len(attrs)),
	}
	for name := range attrs {
		val, _, valDiags := pulsehcl.StaticValue(attrs, name)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}
		if name == kernelIDAttr {
			if val.Type() != cty.String {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid kernel_id",
					Detail:   "kernel_id must be a string.",
					Subject:  attrs[name].Expr.Range().Ptr(),
				})
				continue
			}
			t.KernelID = val.AsString()
			continue
		}
		t.Raw[name] = normalizeNumber(val)
	}
	return t, diags
}

// normalizeNumber rounds numeric literals to float64 so that a value read
// from HCL and the same value read back from an exchange document compare
// equal.
func normalizeNumber(v cty.Value) cty.Value {
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return v
	}
	f, _ := v.AsBigFloat().Float64()
	return cty.NumberFloatVal(f)
}

// duplicateError builds the diagnostic for a repeated top-level name.
func duplicateError(kind, name, first string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Duplicate %s", kind),
		Detail:   fmt.Sprintf("A %s named '%s' is already defined in %s.", kind, name, first),
	}
}
