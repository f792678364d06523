// This file contains the logic for translating kernel manifests into the
// format-agnostic configuration model.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/specialistvlad/pulsegrid/internal/pulsehcl"
	"github.com/zclconf/go-cty/cty"
)

// translateKernel converts a decoded kernel block into a KernelDefinition.
func (l *Loader) translateKernel(ctx context.Context, k *KernelBlock, source string) (*config.KernelDefinition, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx).With("kernel", k.Name)
	logger.Debug("Translating HCL kernel to internal config model.")

	def := &config.KernelDefinition{
		ID:             k.ID,
		Name:           k.Name,
		Version:        k.Version,
		MenuLabel:      k.MenuLabel,
		Algorithm:      k.Algorithm,
		Description:    k.Description,
		StandardFields: k.StandardFields,
		Source:         source,
	}
	if def.Version == 0 {
		def.Version = 1
	}
	if def.Algorithm == "" {
		def.Algorithm = k.Name
	}
	if def.MenuLabel == "" {
		def.MenuLabel = k.Name
	}

	var diags hcl.Diagnostics
	seen := make(map[string]struct{}, len(k.Parameters))
	for i, p := range k.Parameters {
		if _, dup := seen[p.Name]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate parameter definition",
				Detail:   fmt.Sprintf("A parameter named '%s' has already been defined in kernel '%s'.", p.Name, k.Name),
				Subject:  p.Type.Range().Ptr(),
			})
			continue
		}
		seen[p.Name] = struct{}{}

		desc, pDiags := l.translateParameter(ctx, p, i)
		diags = append(diags, pDiags...)
		if desc != nil {
			def.Parameters = append(def.Parameters, desc)
		}
	}
	return def, diags
}

// translateParameter converts one parameter block. Parameters without an
// explicit order keep their declaration position.
func (l *Loader) translateParameter(ctx context.Context, p *ParameterBlock, index int) (*param.Descriptor, hcl.Diagnostics) {
	t, diags := pulsehcl.ParamType(p.Type)
	if diags.HasErrors() {
		return nil, diags
	}

	desc := &param.Descriptor{
		Name:        p.Name,
		Label:       p.Label,
		Type:        t,
		Default:     cty.NilVal,
		Options:     p.Options,
		Order:       index + 1,
		Description: p.Description,
	}
	if desc.Label == "" {
		desc.Label = p.Name
	}
	if p.Order != nil {
		desc.Order = *p.Order
	}

	if isExprDefined(ctx, p.Default, "default") {
		// Defaults must be literal values, hence the nil eval context.
		val, valDiags := p.Default.Value(nil)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			return nil, diags
		}
		desc.Default = val
	}

	if err := desc.Validate(); err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid parameter definition",
			Detail:   err.Error(),
			Subject:  p.Type.Range().Ptr(),
		})
		return nil, diags
	}
	return desc, diags
}
