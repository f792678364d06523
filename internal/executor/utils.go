package executor

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ctyValueToInterface converts a primitive cty.Value to a Go value.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	switch val.Type() {
	case cty.String:
		return val.AsString(), nil
	case cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case cty.Bool:
		return val.True(), nil
	default:
		return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", val.Type().FriendlyName())
	}
}

// FormatValuesForLogs converts a parameter map to its loggable
// representation.
func FormatValuesForLogs(vals map[string]cty.Value) map[string]any {
	out := make(map[string]any, len(vals))
	for name, v := range vals {
		converted, err := ctyValueToInterface(v)
		if err != nil {
			out[name] = fmt.Sprintf("[unloggable cty.Value: %v]", err)
			continue
		}
		out[name] = converted
	}
	return out
}
