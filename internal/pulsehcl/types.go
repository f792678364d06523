package pulsehcl

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/zclconf/go-cty/cty"
)

// ParamType converts an HCL expression that represents a parameter type
// (e.g., the `double` keyword) into its param.Type. Quoted keywords are
// accepted as well.
func ParamType(expr hcl.Expression) (param.Type, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	var keyword string
	traversal, hclDiags := hcl.AbsTraversalForExpr(expr)
	switch {
	case !hclDiags.HasErrors() && len(traversal) == 1:
		keyword = traversal.RootName()
	case hclDiags.HasErrors():
		val, valDiags := expr.Value(nil)
		if !valDiags.HasErrors() && !val.IsNull() && val.Type() == cty.String {
			keyword = val.AsString()
		}
	}

	if keyword == "" {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid type specification",
			Detail:   "The 'type' attribute must be a simple type keyword like 'double' or 'choice', not a complex expression.",
			Subject:  expr.Range().Ptr(),
		})
		return 0, diags
	}

	t, err := param.ParseType(keyword)
	if err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unsupported type",
			Detail:   fmt.Sprintf("The keyword '%s' is not a valid parameter type. Supported types are: %s.", keyword, strings.Join(param.TypeKeywords(), ", ")),
			Subject:  expr.Range().Ptr(),
		})
		return 0, diags
	}
	return t, diags
}
