package param

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Unset is the value every Output parameter holds until a kernel writes it.
var Unset = cty.NullVal(cty.DynamicPseudoType)

// Resolve turns raw inputs into typed, validated values for the given
// descriptor list. Missing inputs take their default; Output parameters are
// initialised to Unset and may not be supplied.
func Resolve(descs []*Descriptor, raw map[string]cty.Value) (*Values, error) {
	byName := make(map[string]*Descriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}

	unknown := make([]string, 0)
	for name := range raw {
		if _, ok := byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, pulseerr.Parameterf(unknown[0], "not declared by this kernel")
	}

	vals := newValues(descs)
	for _, d := range descs {
		in, supplied := raw[d.Name]
		if supplied && in.IsNull() {
			supplied = false
		}

		if d.Type == Output {
			if supplied {
				return nil, pulseerr.Parameterf(d.Name, "output parameters are written by the kernel and cannot be supplied")
			}
			vals.vals[d.Name] = Unset
			continue
		}

		if !supplied {
			if !d.HasDefault() {
				return nil, pulseerr.Parameterf(d.Name, "required parameter is missing")
			}
			in = d.Default
		}

		v, err := coerce(d, in)
		if err != nil {
			return nil, err
		}
		vals.vals[d.Name] = v
	}
	return vals, nil
}

// coerce converts a single raw value to the canonical representation of the
// descriptor's type.
func coerce(d *Descriptor, in cty.Value) (cty.Value, error) {
	if !in.IsKnown() {
		return cty.NilVal, pulseerr.Parameterf(d.Name, "value is not known")
	}
	switch d.Type {
	case Double:
		f, err := toFloat(d.Name, in)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberFloatVal(f), nil

	case Integer:
		f, err := toFloat(d.Name, in)
		if err != nil {
			return cty.NilVal, err
		}
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return cty.NilVal, pulseerr.Parameterf(d.Name, "expected an integer, got %s", strconv.FormatFloat(f, 'g', -1, 64))
		}
		return cty.NumberIntVal(int64(f)), nil

	case Choice:
		idx, err := choiceIndex(d, in)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberIntVal(int64(idx)), nil

	case String, FileRef:
		s, err := convert.Convert(in, cty.String)
		if err != nil {
			return cty.NilVal, pulseerr.Parameterf(d.Name, "expected text, got %s", in.Type().FriendlyName())
		}
		return s, nil

	case Output:
		return cty.NilVal, pulseerr.Parameterf(d.Name, "output parameters cannot hold input values")
	}
	return cty.NilVal, pulseerr.Parameterf(d.Name, "unsupported parameter type %d", int(d.Type))
}

func toFloat(field string, in cty.Value) (float64, error) {
	var f float64
	switch in.Type() {
	case cty.Number:
		f, _ = in.AsBigFloat().Float64()
	case cty.String:
		s := strings.TrimSpace(in.AsString())
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, pulseerr.Parameterf(field, "cannot parse %q as a number", s)
		}
		f = parsed
	default:
		return 0, pulseerr.Parameterf(field, "expected a number, got %s", in.Type().FriendlyName())
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, pulseerr.Parameterf(field, "value must be finite")
	}
	return f, nil
}

// choiceIndex accepts an ordinal index (number or numeric text) or one of the
// option labels.
func choiceIndex(d *Descriptor, in cty.Value) (int, error) {
	if in.Type() == cty.String {
		s := strings.TrimSpace(in.AsString())
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			for i, opt := range d.Options {
				if strings.EqualFold(opt, s) {
					return i, nil
				}
			}
			return 0, pulseerr.Parameterf(d.Name, "%q is not one of %s", s, strings.Join(d.Options, ", "))
		}
	}
	f, err := toFloat(d.Name, in)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < 0 || int(f) >= len(d.Options) {
		return 0, pulseerr.Parameterf(d.Name, "option index %s out of range [0, %d)", strconv.FormatFloat(f, 'g', -1, 64), len(d.Options))
	}
	return int(f), nil
}
