// Package pulsehcl holds small HCL helpers shared by the configuration
// adapter: block lookup, type keywords and static attribute evaluation.
package pulsehcl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// FindUniqueBlock searches a slice of blocks for all blocks of a given name.
// It returns a diagnostic error if more than one block of that name is found.
// If no block is found, it returns nil.
func FindUniqueBlock(blocks hcl.Blocks, name string) (*hcl.Block, hcl.Diagnostics) {
	var found *hcl.Block
	var diags hcl.Diagnostics

	for _, block := range blocks {
		if block.Type == name {
			if found != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate \"" + name + "\" block",
					Detail:   "Only one \"" + name + "\" block is allowed.",
					Subject:  &block.DefRange,
				})
			}
			found = block
		}
	}

	return found, diags
}

// StaticValue evaluates an attribute without variables or functions.
// Manifests and designs are plain data, so anything else is an error.
func StaticValue(attrs hcl.Attributes, name string) (cty.Value, bool, hcl.Diagnostics) {
	attr, ok := attrs[name]
	if !ok {
		return cty.NilVal, false, nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, true, diags
	}
	return val, true, nil
}

// Reference reads an attribute that names another block. Both the quoted
// form `machine = "trio"` and the bare reference `machine = machine.trio`
// are accepted; the latter must start with kind.
func Reference(expr hcl.Expression, kind string) (string, hcl.Diagnostics) {
	if traversal, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		if len(traversal) == 2 && traversal.RootName() == kind {
			if step, ok := traversal[1].(hcl.TraverseAttr); ok {
				return step.Name, nil
			}
		}
		return "", hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid reference",
			Detail:   "Expected a reference of the form " + kind + ".<name> or a quoted name.",
			Subject:  expr.Range().Ptr(),
		}}
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() || val.Type() != cty.String {
		return "", hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid reference",
			Detail:   "The " + kind + " reference must be a string.",
			Subject:  expr.Range().Ptr(),
		}}
	}
	return val.AsString(), nil
}
