package param

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Values is the resolved, typed parameter set of one pipeline stage.
type Values struct {
	descs map[string]*Descriptor
	order []string
	vals  map[string]cty.Value
}

func newValues(descs []*Descriptor) *Values {
	v := &Values{
		descs: make(map[string]*Descriptor, len(descs)),
		vals:  make(map[string]cty.Value, len(descs)),
	}
	for _, d := range descs {
		v.descs[d.Name] = d
		v.order = append(v.order, d.Name)
	}
	return v
}

// Clone returns a copy whose values can change independently. Descriptors
// are shared.
func (v *Values) Clone() *Values {
	if v == nil {
		return nil
	}
	out := &Values{
		descs: v.descs,
		order: append([]string(nil), v.order...),
		vals:  make(map[string]cty.Value, len(v.vals)),
	}
	for name, val := range v.vals {
		out.vals[name] = val
	}
	return out
}

// Names returns the parameter names in descriptor order.
func (v *Values) Names() []string {
	return append([]string(nil), v.order...)
}

// Descriptor returns the descriptor a value was resolved against.
func (v *Values) Descriptor(name string) (*Descriptor, bool) {
	d, ok := v.descs[name]
	return d, ok
}

// Get returns the resolved value for name.
func (v *Values) Get(name string) (cty.Value, bool) {
	val, ok := v.vals[name]
	return val, ok
}

// Float returns a numeric parameter as float64.
func (v *Values) Float(name string) (float64, bool) {
	val, ok := v.vals[name]
	if !ok || val.IsNull() || val.Type() != cty.Number {
		return 0, false
	}
	f, _ := val.AsBigFloat().Float64()
	return f, true
}

// Int returns an Integer or Choice parameter.
func (v *Values) Int(name string) (int, bool) {
	f, ok := v.Float(name)
	return int(f), ok
}

// Text returns a String or FileRef parameter.
func (v *Values) Text(name string) (string, bool) {
	val, ok := v.vals[name]
	if !ok || val.IsNull() || val.Type() != cty.String {
		return "", false
	}
	return val.AsString(), true
}

// Override replaces an input value after resolution, re-validating it
// against its descriptor. Constraint clipping uses it.
func (v *Values) Override(name string, in cty.Value) error {
	d, ok := v.descs[name]
	if !ok {
		return fmt.Errorf("parameter %q is not declared", name)
	}
	val, err := coerce(d, in)
	if err != nil {
		return err
	}
	v.vals[name] = val
	return nil
}

// SetOutput writes a kernel side output. Only Output parameters accept it.
func (v *Values) SetOutput(name string, out cty.Value) error {
	d, ok := v.descs[name]
	if !ok {
		return fmt.Errorf("kernel produced undeclared output %q", name)
	}
	if d.Type != Output {
		return fmt.Errorf("parameter %q is not an output parameter", name)
	}
	v.vals[name] = out
	return nil
}

// Inputs returns a copy of every non-Output value, keyed by name.
func (v *Values) Inputs() map[string]cty.Value {
	out := make(map[string]cty.Value, len(v.vals))
	for name, val := range v.vals {
		if v.descs[name].Type == Output {
			continue
		}
		out[name] = val
	}
	return out
}

// Outputs returns a copy of every Output value, keyed by name.
func (v *Values) Outputs() map[string]cty.Value {
	out := make(map[string]cty.Value)
	for name, val := range v.vals {
		if v.descs[name].Type == Output {
			out[name] = val
		}
	}
	return out
}

// Canonical renders the input values as exact text, sorted by name, with
// each value quoted so separators inside strings stay unambiguous. Two
// parameter sets with equal Canonical strings run a kernel identically.
func (v *Values) Canonical() string {
	names := make([]string, 0, len(v.vals))
	for name := range v.Inputs() {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		d := v.descs[name]
		fmt.Fprintf(&b, "%s:%s=%s;", name, d.Type, strconv.Quote(FormatValue(d.Type, v.vals[name])))
	}
	return b.String()
}

// FormatValue renders a resolved value as text that ParseValue reads back
// exactly.
func FormatValue(t Type, val cty.Value) string {
	if val.IsNull() || !val.IsKnown() {
		return "unset"
	}
	switch val.Type() {
	case cty.Number:
		if t == Integer || t == Choice {
			i, _ := val.AsBigFloat().Int64()
			return strconv.FormatInt(i, 10)
		}
		f, _ := val.AsBigFloat().Float64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case cty.String:
		return val.AsString()
	case cty.Bool:
		return strconv.FormatBool(val.True())
	}
	return val.GoString()
}

// ParseValue reads text produced by FormatValue back into a raw value that
// Resolve accepts for the given type.
func ParseValue(t Type, s string) (cty.Value, error) {
	switch t {
	case Double, Integer, Choice:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return cty.NilVal, fmt.Errorf("parse %s value %q: %w", t, s, err)
		}
		return cty.NumberFloatVal(f), nil
	case Output:
		if s == "unset" {
			return Unset, nil
		}
		return cty.StringVal(s), nil
	default:
		return cty.StringVal(s), nil
	}
}
