// Package hsech provides the adiabatic hyperbolic-secant kernel.
package hsech

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the hsech kernel.
type Input struct {
	TipAngle  float64 `pulse:"tip_angle"`
	TimeSteps int     `pulse:"time_steps"`
	Duration  float64 `pulse:"duration"`
	Bandwidth float64 `pulse:"bandwidth"`
	Cycles    float64 `pulse:"cycles"`
	Power     int     `pulse:"power"`
	Sharpness float64 `pulse:"sharpness"`
}

func (in *Input) validate() error {
	switch {
	case in.TimeSteps < 8:
		return pulseerr.Parameterf("time_steps", "need at least 8 samples, got %d", in.TimeSteps)
	case in.Duration <= 0:
		return pulseerr.Parameterf("duration", "must be positive, got %g", in.Duration)
	case in.TipAngle <= 0:
		return pulseerr.Parameterf("tip_angle", "must be positive, got %g", in.TipAngle)
	case in.Bandwidth < 0:
		return pulseerr.Parameterf("bandwidth", "must not be negative, got %g", in.Bandwidth)
	case in.Bandwidth == 0 && in.Cycles <= 0:
		return pulseerr.Parameterf("cycles", "must be positive when no bandwidth is given, got %g", in.Cycles)
	case in.Power < 1:
		return pulseerr.Parameterf("power", "must be at least 1, got %d", in.Power)
	case in.Sharpness <= 0:
		return pulseerr.Parameterf("sharpness", "must be positive, got %g", in.Sharpness)
	}
	return nil
}

// Run generates the pulse.
func Run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	in := req.Input.(*Input)
	if err := in.validate(); err != nil {
		return nil, err
	}
	consts := req.Consts()

	n := in.TimeSteps
	durationS := in.Duration * 1e-3
	dwell := durationS / float64(n)
	halfT := durationS / 2
	beta := in.Sharpness

	// The sweep spans ±µβ/(T/2) rad/s, a bandwidth of 2µβ/(πT) Hz.
	mu := in.Cycles
	if in.Bandwidth > 0 {
		mu = in.Bandwidth * 1e3 * math.Pi * durationS / (2 * beta)
	}
	bandwidthHz := 2 * mu * beta / (math.Pi * durationS)
	sweep := mu * beta / halfT
	peak := in.TipAngle * consts.DegToRad / math.Pi * math.Sqrt(mu) * beta / halfT

	env := make([]float64, n)
	energy := make([]float64, n+1)
	for k := range env {
		tau := -1 + (2*float64(k)+1)/float64(n)
		env[k] = sech(beta * math.Pow(math.Abs(tau), float64(in.Power)))
		energy[k+1] = energy[k] + env[k]*env[k]
	}
	total := energy[n]

	wave := make([]complex128, n)
	phase := 0.0
	for k := range wave {
		// Frequency follows the normalised running integral of the
		// squared envelope, taken at the sample midpoint.
		frac := (energy[k] + energy[k+1]) / 2 / total
		omega := sweep * (2*frac - 1)
		phase += omega * dwell
		wave[k] = cmplx.Rect(consts.MicroTesla(peak*env[k]), phase)
	}

	st := pulse.NewState(wave, dwell)
	st.Scalars["tip_angle"] = in.TipAngle
	st.Scalars["bandwidth"] = bandwidthHz / 1e3

	ctxlog.FromContext(ctx).Debug("Hyperbolic secant pulse generated.", "mu", mu, "beta", beta, "power", in.Power, "bandwidth_khz", bandwidthHz/1e3)

	res := kernel.NewResult(st)
	res.SetFloat("bandwidth_out", bandwidthHz/1e3)
	res.SetFloat("cycles_out", mu)
	res.SetFloat("peak_b1", st.PeakAmplitude())
	return res, nil
}

func sech(x float64) float64 { return 1 / math.Cosh(x) }

// Register registers the kernel with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKernel("hsech", &registry.RegisteredKernel{
		Kernel:   kernel.Func(Run),
		NewInput: func() any { return new(Input) },
		Constraints: machine.Policies{
			machine.DwellMinimum:   machine.Clip,
			machine.DwellIncrement: machine.Clip,
			machine.B1Maximum:      machine.Fatal,
		},
	})
}
