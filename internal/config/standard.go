package config

import (
	"sort"

	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/zclconf/go-cty/cty"
)

// Standard fields are shared by many kernels. A kernel makes one visible by
// listing it in its standard_fields.
const (
	FieldTipAngle  = "tip_angle"
	FieldTimeSteps = "time_steps"
	FieldDuration  = "duration"
	FieldBandwidth = "bandwidth"
	FieldFile1     = "file1"
	FieldFile2     = "file2"
)

var standardFields = map[string]param.Descriptor{
	FieldTipAngle: {
		Name: FieldTipAngle, Label: "Tip angle [deg]", Type: param.Double,
		Default: cty.NumberIntVal(90), Order: -60,
	},
	FieldTimeSteps: {
		Name: FieldTimeSteps, Label: "Time steps", Type: param.Integer,
		Default: cty.NumberIntVal(256), Order: -50,
	},
	FieldDuration: {
		Name: FieldDuration, Label: "Duration [ms]", Type: param.Double,
		Default: cty.NumberIntVal(4), Order: -40,
	},
	FieldBandwidth: {
		Name: FieldBandwidth, Label: "Bandwidth [kHz]", Type: param.Double,
		Default: cty.NumberIntVal(2), Order: -30,
	},
	FieldFile1: {
		Name: FieldFile1, Label: "File", Type: param.FileRef,
		Default: cty.NilVal, Order: -20,
	},
	FieldFile2: {
		Name: FieldFile2, Label: "Second file", Type: param.FileRef,
		Default: cty.StringVal(""), Order: -10,
	},
}

// StandardDescriptor returns a fresh copy of the named standard descriptor.
func StandardDescriptor(name string) (*param.Descriptor, bool) {
	d, ok := standardFields[name]
	if !ok {
		return nil, false
	}
	return &d, true
}

// StandardFieldNames lists every standard field in display order.
func StandardFieldNames() []string {
	names := make([]string, 0, len(standardFields))
	for name := range standardFields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return standardFields[names[i]].Order < standardFields[names[j]].Order
	})
	return names
}
