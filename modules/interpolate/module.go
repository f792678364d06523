// Package interpolate provides the resampling and flip-angle rescaling
// kernel.
package interpolate

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

// Input defines the arguments for the interpolate kernel.
type Input struct {
	Factor   float64 `pulse:"interpolation_factor"`
	TipAngle float64 `pulse:"tip_angle"`
}

// Run resamples the prior pulse to round(N·factor) samples. The duration is
// kept exactly, so the new dwell is duration/N'.
func Run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	if err := req.RequirePrior(); err != nil {
		return nil, err
	}
	in := req.Input.(*Input)
	if in.Factor <= 0 || math.IsInf(in.Factor, 0) || math.IsNaN(in.Factor) {
		return nil, pulseerr.Parameterf("interpolation_factor", "must be positive, got %g", in.Factor)
	}
	if in.TipAngle < 0 {
		return nil, pulseerr.Parameterf("tip_angle", "must not be negative, got %g", in.TipAngle)
	}

	prior := req.Prior
	n := int(math.Round(float64(prior.Len()) * in.Factor))
	if n < 2 {
		return nil, pulseerr.Algorithmf("too_few_points", "interpolating %d samples by %g leaves %d", prior.Len(), in.Factor, n)
	}
	duration := prior.Duration()
	dwell := duration / float64(n)

	st := pulse.NewState(numeric.Resample(prior.Waveform, n), dwell)
	for k, v := range prior.Scalars {
		st.Scalars[k] = v
	}
	if prior.HasGradient() {
		st.Gradient, st.GradientTime = resampleGradient(prior.Gradient, prior.GradientTime, in.Factor)
	}

	logger := ctxlog.FromContext(ctx)
	res := kernel.NewResult(st)
	if in.TipAngle > 0 {
		consts := req.Consts()
		old, ok := prior.Scalar("tip_angle")
		if !ok || old <= 0 {
			old = smallTipAngle(consts, prior)
			res.Warnf("prior pulse carries no tip angle, using the small-tip estimate %.4g deg", old)
		}
		if old <= 0 {
			return nil, pulseerr.Algorithmf("zero_area", "cannot rescale a pulse with zero flip angle")
		}
		scale := complex(in.TipAngle/old, 0)
		for i := range st.Waveform {
			st.Waveform[i] *= scale
		}
		st.Scalars["tip_angle"] = in.TipAngle
		logger.Debug("Flip angle rescaled.", "from_deg", old, "to_deg", in.TipAngle)
	}

	logger.Debug("Pulse resampled.", "from", prior.Len(), "to", n, "dwell_us", dwell*1e6)
	res.SetInt("time_steps", n)
	res.SetFloat("dwell_time", dwell*1e6)
	return res, nil
}

// smallTipAngle estimates the flip angle in degrees from the pulse area.
func smallTipAngle(c machine.Constants, st *pulse.State) float64 {
	var area complex128
	for _, r := range c.Rotations(st.Waveform, st.Dwell) {
		area += r
	}
	return cmplx.Abs(area) / c.DegToRad
}

// resampleGradient resamples the gradient over its own raster, keeping
// the start time and the total duration.
func resampleGradient(g, axis []float64, factor float64) ([]float64, []float64) {
	n := int(math.Round(float64(len(g)) * factor))
	if len(g) < 2 || n < 2 {
		return append([]float64(nil), g...), append([]float64(nil), axis...)
	}
	step := axis[1] - axis[0]
	total := step * float64(len(g))
	newAxis := make([]float64, n)
	for k := range newAxis {
		newAxis[k] = axis[0] + float64(k)*total/float64(n)
	}
	return numeric.ResampleReal(g, n), newAxis
}

// Register registers the kernel with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKernel("interpolate", &registry.RegisteredKernel{
		Kernel:     kernel.Func(Run),
		NewInput:   func() any { return new(Input) },
		NeedsPrior: true,
		Constraints: machine.Policies{
			machine.DwellMinimum:    machine.Fatal,
			machine.DwellIncrement:  machine.Clip,
			machine.B1Maximum:       machine.Fatal,
			machine.GradientMaximum: machine.Fatal,
		},
	})
}
