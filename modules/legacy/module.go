// Package legacy provides the kernel that migrates pulses stored by the
// predecessor tool. Each series is base64 of little-endian float64 words,
// and an absent gradient is spelled "none".
package legacy

import (
	"context"
	"math"

	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the import_legacy kernel.
type Input struct {
	Waveform     string `pulse:"waveform"`
	TimeAxis     string `pulse:"time_axis"`
	Gradient     string `pulse:"gradient"`
	GradientAxis string `pulse:"gradient_axis"`
}

// Run decodes the four series and returns them unchanged as a state.
func Run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	in := req.Input.(*Input)

	wave, err := pulse.DecodeComplexSeries(in.Waveform)
	if err != nil {
		return nil, pulseerr.Parameterf("waveform", "%v", err)
	}
	if wave == nil {
		return nil, pulseerr.Parameterf("waveform", "a waveform is required")
	}
	axis, err := pulse.DecodeSeries(in.TimeAxis)
	if err != nil {
		return nil, pulseerr.Parameterf("time_axis", "%v", err)
	}
	if len(axis) != len(wave) {
		return nil, pulseerr.Algorithmf("length_mismatch", "waveform has %d samples but time axis has %d", len(wave), len(axis))
	}
	if len(wave) < 2 {
		return nil, pulseerr.Algorithmf("too_few_points", "a legacy pulse needs at least 2 samples, found %d", len(wave))
	}

	grad, err := pulse.DecodeSeries(in.Gradient)
	if err != nil {
		return nil, pulseerr.Parameterf("gradient", "%v", err)
	}
	gradAxis, err := pulse.DecodeSeries(in.GradientAxis)
	if err != nil {
		return nil, pulseerr.Parameterf("gradient_axis", "%v", err)
	}

	st := &pulse.State{
		Waveform:     wave,
		Time:         axis,
		Dwell:        (axis[len(axis)-1] - axis[0]) / float64(len(axis)-1),
		Gradient:     grad,
		GradientTime: gradAxis,
		Scalars:      make(map[string]float64),
	}
	if math.Abs(axis[0]) > 1e-9*st.Dwell {
		return nil, pulseerr.Algorithmf("invalid_time_axis", "time axis starts at %g s, expected 0", axis[0])
	}
	if err := st.Validate(); err != nil {
		return nil, pulseerr.Algorithmf("invalid_legacy_state", "%v", err)
	}
	return kernel.NewResult(st), nil
}

// Register registers the kernel with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKernel("import_legacy", &registry.RegisteredKernel{
		Kernel:   kernel.Func(Run),
		NewInput: func() any { return new(Input) },
		Constraints: machine.Policies{
			machine.DwellMinimum:    machine.Warn,
			machine.DwellIncrement:  machine.Warn,
			machine.B1Maximum:       machine.Warn,
			machine.GradientMaximum: machine.Warn,
			machine.GradientSlew:    machine.Warn,
		},
	})
}
