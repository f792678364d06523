// Package slr provides the Shinnar-Le Roux synthesis kernel.
package slr

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/numeric"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// PulseType is the pulse_type choice.
type PulseType int

const (
	Excite PulseType = iota
	Inversion
	SpinEcho
	Saturation
	SmallTip
)

// FilterType is the filter_type choice.
type FilterType int

const (
	Linear FilterType = iota
	MinimumPhase
	MaximumPhase
)

// Input defines the arguments for the slr kernel.
type Input struct {
	TipAngle       float64 `pulse:"tip_angle"`
	TimeSteps      int     `pulse:"time_steps"`
	Duration       float64 `pulse:"duration"`
	Bandwidth      float64 `pulse:"bandwidth"`
	PulseType      int     `pulse:"pulse_type"`
	FilterType     int     `pulse:"filter_type"`
	PassRipple     float64 `pulse:"pass_ripple"`
	RejectRipple   float64 `pulse:"reject_ripple"`
	Bands          int     `pulse:"bands"`
	BandSeparation float64 `pulse:"band_separation"`
	SliceThickness float64 `pulse:"slice_thickness"`
}

func (in *Input) validate() error {
	switch {
	case in.TimeSteps < 8:
		return pulseerr.Parameterf("time_steps", "need at least 8 samples, got %d", in.TimeSteps)
	case in.Duration <= 0:
		return pulseerr.Parameterf("duration", "must be positive, got %g", in.Duration)
	case in.Bandwidth <= 0:
		return pulseerr.Parameterf("bandwidth", "must be positive, got %g", in.Bandwidth)
	case in.TipAngle <= 0 || in.TipAngle > 360:
		return pulseerr.Parameterf("tip_angle", "must be in (0, 360], got %g", in.TipAngle)
	case in.PulseType < int(Excite) || in.PulseType > int(SmallTip):
		return pulseerr.Parameterf("pulse_type", "unknown pulse type %d", in.PulseType)
	case in.FilterType < int(Linear) || in.FilterType > int(MaximumPhase):
		return pulseerr.Parameterf("filter_type", "unknown filter type %d", in.FilterType)
	case in.PassRipple <= 0 || in.PassRipple >= 50:
		return pulseerr.Parameterf("pass_ripple", "must be in (0, 50) %%, got %g", in.PassRipple)
	case in.RejectRipple <= 0 || in.RejectRipple >= 50:
		return pulseerr.Parameterf("reject_ripple", "must be in (0, 50) %%, got %g", in.RejectRipple)
	case in.Bands < 1:
		return pulseerr.Parameterf("bands", "must be at least 1, got %d", in.Bands)
	case in.Bands > 1 && in.BandSeparation <= 1:
		return pulseerr.Parameterf("band_separation", "bands overlap at a separation of %g bandwidths", in.BandSeparation)
	case in.SliceThickness < 0:
		return pulseerr.Parameterf("slice_thickness", "must not be negative, got %g", in.SliceThickness)
	}
	return nil
}

// Run designs the pulse.
func Run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	in := req.Input.(*Input)
	if err := in.validate(); err != nil {
		return nil, err
	}
	consts := req.Consts()

	n := in.TimeSteps
	durationS := in.Duration * 1e-3
	dwell := durationS / float64(n)
	bandwidthHz := in.Bandwidth * 1e3
	tb := durationS * bandwidthHz
	theta := in.TipAngle * consts.DegToRad

	if in.Bands > 1 {
		span := (float64(in.Bands-1)/2*in.BandSeparation + 0.5) * bandwidthHz
		if span >= 1/(2*dwell) {
			return nil, pulseerr.Parameterf("band_separation", "outermost band at %.4g kHz is beyond the %.4g kHz sampling limit", span/1e3, 1/(2*dwell)/1e3)
		}
	}

	d1, d2 := rippleTransform(PulseType(in.PulseType), in.PassRipple/100, in.RejectRipple/100)
	taps, err := designBeta(FilterType(in.FilterType), n, tb, d1, d2, req.Machine.Oversampling())
	if err != nil {
		return nil, err
	}

	bsf := math.Sin(theta / 2)
	b := make([]complex128, n)
	for k, h := range taps {
		b[k] = complex(bsf*h, 0)
	}
	if in.Bands > 1 {
		modulate(b, in.Bands, in.BandSeparation*bandwidthHz, dwell)
	}

	rf, err := synthesize(b, req.Machine.Oversampling())
	if err != nil {
		return nil, err
	}

	st := pulse.NewState(consts.FromRotations(rf, dwell), dwell)
	st.Scalars["tip_angle"] = in.TipAngle
	st.Scalars["bandwidth"] = in.Bandwidth

	if in.SliceThickness > 0 {
		// γ is per µT; the gradient is in mT/m and the thickness in mm.
		g := bandwidthHz / (consts.GammaHzPerMicroTesla * 1e3 * in.SliceThickness * 1e-3)
		st.Gradient = make([]float64, n)
		for k := range st.Gradient {
			st.Gradient[k] = g
		}
		st.GradientTime = pulse.NewTimeAxis(n, dwell)
	}

	measured := measure(rf, PulseType(in.PulseType), bandwidthHz, dwell, req.Settings, in.PassRipple/100, in.RejectRipple/100)

	ctxlog.FromContext(ctx).Debug("SLR pulse designed.",
		"time_bandwidth", tb, "filter", in.FilterType, "bands", in.Bands, "profile_bandwidth_khz", measured/1e3)

	res := kernel.NewResult(st)
	res.SetFloat("profile_bandwidth", measured/1e3)
	res.SetFloat("time_bandwidth", tb)
	res.SetFloat("peak_b1", st.PeakAmplitude())
	return res, nil
}

// synthesize completes b with its minimum-phase A and runs the inverse SLR
// transform. It returns per-sample rotations in radians.
func synthesize(b []complex128, oversample int) ([]complex128, error) {
	a := numeric.BToA(b, oversample)
	rf, err := numeric.ABToRF(a, b)
	if err != nil {
		return nil, pulseerr.Algorithmf("inverse_slr", "%v", err)
	}
	for k, r := range rf {
		if cmplx.IsNaN(r) || cmplx.IsInf(r) {
			return nil, pulseerr.Algorithmf("inverse_slr", "inverse SLR produced a non-finite sample at %d", k)
		}
	}
	return rf, nil
}

// modulate replicates the band around centres spaced sep Hz apart,
// symmetric about zero.
func modulate(b []complex128, bands int, sep, dwell float64) {
	n := len(b)
	for k := range b {
		t := (float64(k) - float64(n-1)/2) * dwell
		var m complex128
		for j := range bands {
			f := (float64(j) - float64(bands-1)/2) * sep
			m += cmplx.Rect(1, 2*math.Pi*f*t)
		}
		b[k] *= m
	}
}

// Register registers the kernel with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKernel("slr", &registry.RegisteredKernel{
		Kernel:   kernel.Func(Run),
		NewInput: func() any { return new(Input) },
		Constraints: machine.Policies{
			machine.DwellMinimum:    machine.Clip,
			machine.DwellIncrement:  machine.Clip,
			machine.B1Maximum:       machine.Fatal,
			machine.GradientMaximum: machine.Fatal,
		},
	})
}
