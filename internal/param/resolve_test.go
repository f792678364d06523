package param

import (
	"errors"
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func sampleDescriptors() []*Descriptor {
	return []*Descriptor{
		{Name: "dwell_time", Type: Double, Default: cty.NumberFloatVal(4)},
		{Name: "time_steps", Type: Integer, Default: cty.NumberIntVal(256)},
		{Name: "filter_type", Type: Choice, Options: []string{"linear", "minimum", "maximum"}, Default: cty.NumberIntVal(0)},
		{Name: "file1", Type: FileRef},
		{Name: "peak_b1", Type: Output},
	}
}

func requireParameterError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var pe *pulseerr.ParameterError
	require.True(t, errors.As(err, &pe), "expected ParameterError, got %T: %v", err, err)
	assert.Equal(t, field, pe.Field)
}

func TestParseType(t *testing.T) {
	for tag, want := range map[string]Type{
		"double": Double, "Integer": Integer, " string ": String,
		"choice": Choice, "output": Output, "file": FileRef,
	} {
		got, err := ParseType(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, want, got)
	}

	_, err := ParseType("float")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown parameter type "float"`)
}

func TestResolve_DefaultsAndOutputs(t *testing.T) {
	vals, err := Resolve(sampleDescriptors(), map[string]cty.Value{
		"file1": cty.StringVal("/data/pulse.txt"),
	})
	require.NoError(t, err)

	f, ok := vals.Float("dwell_time")
	require.True(t, ok)
	assert.Equal(t, 4.0, f)

	n, _ := vals.Int("time_steps")
	assert.Equal(t, 256, n)

	out, ok := vals.Get("peak_b1")
	require.True(t, ok)
	assert.True(t, out.IsNull(), "outputs start unset")
	assert.NotContains(t, vals.Inputs(), "peak_b1")
}

func TestResolve_FractionalDwellIsNotTruncated(t *testing.T) {
	vals, err := Resolve(sampleDescriptors(), map[string]cty.Value{
		"file1":      cty.StringVal("x"),
		"dwell_time": cty.StringVal("6.4"),
	})
	require.NoError(t, err)
	f, _ := vals.Float("dwell_time")
	assert.Equal(t, 6.4, f)
}

func TestResolve_Errors(t *testing.T) {
	cases := []struct {
		name  string
		raw   map[string]cty.Value
		field string
	}{
		{"missing required", map[string]cty.Value{}, "file1"},
		{"unknown key", map[string]cty.Value{"file1": cty.StringVal("x"), "bogus": cty.NumberIntVal(1)}, "bogus"},
		{"output supplied", map[string]cty.Value{"file1": cty.StringVal("x"), "peak_b1": cty.NumberIntVal(1)}, "peak_b1"},
		{"fractional integer", map[string]cty.Value{"file1": cty.StringVal("x"), "time_steps": cty.NumberFloatVal(12.5)}, "time_steps"},
		{"choice out of range", map[string]cty.Value{"file1": cty.StringVal("x"), "filter_type": cty.NumberIntVal(3)}, "filter_type"},
		{"choice negative", map[string]cty.Value{"file1": cty.StringVal("x"), "filter_type": cty.NumberIntVal(-1)}, "filter_type"},
		{"non-numeric double", map[string]cty.Value{"file1": cty.StringVal("x"), "dwell_time": cty.StringVal("fast")}, "dwell_time"},
		{"non-finite double", map[string]cty.Value{"file1": cty.StringVal("x"), "dwell_time": cty.StringVal("NaN")}, "dwell_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(sampleDescriptors(), tc.raw)
			requireParameterError(t, err, tc.field)
		})
	}
}

func TestResolve_ChoiceByLabelOrIndex(t *testing.T) {
	for _, raw := range []cty.Value{cty.StringVal("maximum"), cty.NumberIntVal(2), cty.StringVal("2")} {
		vals, err := Resolve(sampleDescriptors(), map[string]cty.Value{
			"file1":       cty.StringVal("x"),
			"filter_type": raw,
		})
		require.NoError(t, err)
		idx, _ := vals.Int("filter_type")
		assert.Equal(t, 2, idx)
	}
}

func TestCanonical_RoundTripsThroughText(t *testing.T) {
	descs := sampleDescriptors()
	vals, err := Resolve(descs, map[string]cty.Value{
		"file1":      cty.StringVal("a.txt"),
		"dwell_time": cty.NumberFloatVal(0.1 + 0.2),
	})
	require.NoError(t, err)

	raw := make(map[string]cty.Value)
	for name, v := range vals.Inputs() {
		d, _ := vals.Descriptor(name)
		parsed, err := ParseValue(d.Type, FormatValue(d.Type, v))
		require.NoError(t, err)
		raw[name] = parsed
	}
	again, err := Resolve(descs, raw)
	require.NoError(t, err)
	assert.Equal(t, vals.Canonical(), again.Canonical())

	f, _ := again.Float("dwell_time")
	assert.Equal(t, 0.1+0.2, f, "float text form must be exact")
}

func TestCanonical_SeparatorsInStrings(t *testing.T) {
	descs := []*Descriptor{
		{Name: "a", Type: String, Default: cty.StringVal("")},
		{Name: "b", Type: String, Default: cty.StringVal("")},
	}
	first, err := Resolve(descs, map[string]cty.Value{
		"a": cty.StringVal("x;b:string=y"),
	})
	require.NoError(t, err)
	second, err := Resolve(descs, map[string]cty.Value{
		"a": cty.StringVal("x"),
		"b": cty.StringVal("y;b:string="),
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.Canonical(), second.Canonical())
	assert.Contains(t, first.Canonical(), `a:string="x;b:string=y";`)
}

func TestValues_Clone(t *testing.T) {
	vals, err := Resolve(sampleDescriptors(), nil)
	require.NoError(t, err)

	c := vals.Clone()
	require.NoError(t, c.SetOutput("peak_b1", cty.NumberFloatVal(12)))
	require.NoError(t, c.Override("dwell_time", cty.NumberFloatVal(8)))

	f, _ := vals.Float("dwell_time")
	assert.Equal(t, 4.0, f)
	out, _ := vals.Get("peak_b1")
	assert.True(t, out.IsNull())
	assert.Equal(t, vals.Names(), c.Names())
}

func TestValidateSet(t *testing.T) {
	require.NoError(t, ValidateSet(sampleDescriptors()))

	dup := append(sampleDescriptors(), &Descriptor{Name: "file1", Type: String})
	assert.ErrorContains(t, ValidateSet(dup), "duplicate parameter")

	noOpts := []*Descriptor{{Name: "mode", Type: Choice}}
	assert.ErrorContains(t, ValidateSet(noOpts), "at least one option")

	badDefault := []*Descriptor{{Name: "n", Type: Integer, Default: cty.StringVal("1.5")}}
	assert.ErrorContains(t, ValidateSet(badDefault), "invalid default")
}

func TestSetOutput(t *testing.T) {
	vals, err := Resolve(sampleDescriptors(), map[string]cty.Value{"file1": cty.StringVal("x")})
	require.NoError(t, err)

	require.NoError(t, vals.SetOutput("peak_b1", cty.NumberFloatVal(12.5)))
	assert.Error(t, vals.SetOutput("dwell_time", cty.NumberFloatVal(1)))
	assert.Error(t, vals.SetOutput("nope", cty.NumberFloatVal(1)))

	outs := vals.Outputs()
	require.Contains(t, outs, "peak_b1")
	assert.Equal(t, "12.5", FormatValue(Output, outs["peak_b1"]))
}
