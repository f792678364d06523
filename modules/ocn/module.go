// Package ocn provides the optimal-control refinement kernel. It improves a
// prior pulse by gradient descent on the distance between the simulated
// and target magnetisation over a grid of frequency offsets and B1 scales.
package ocn

import (
	"context"
	"fmt"
	"math"

	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// Halt reasons reported in the halt_reason output.
const (
	HaltMaxIterations     = "max_iterations"
	HaltResidualError     = "residual_error"
	HaltDifferentialError = "differential_error"
	HaltMaxTime           = "max_time"
	HaltErrorIncreasing   = "error_increasing"
	HaltZeroGradient      = "zero_gradient"
	HaltIterationLimit    = "iteration_limit"
)

// iterationLimit bounds the loop when neither the iteration nor the time
// check is enabled.
const iterationLimit = 10000

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the ocn kernel. Switches are choice
// parameters where 0 is off.
type Input struct {
	TipAngle        float64 `pulse:"tip_angle"`
	Bandwidth       float64 `pulse:"bandwidth"`
	FrequencyPoints int     `pulse:"frequency_points"`
	B1Immunity      float64 `pulse:"b1_immunity"`
	B1Points        int     `pulse:"b1_points"`
	StepSize        float64 `pulse:"step_size"`
	SARLimit        float64 `pulse:"sar_limit"`
	RefocusGradient int     `pulse:"refocus_gradient"`

	MaxIterationCheck          int     `pulse:"max_iteration_check"`
	MaxIterations              int     `pulse:"max_iterations"`
	ResidualErrorCheck         int     `pulse:"residual_error_check"`
	ResidualErrorTolerance     float64 `pulse:"residual_error_tolerance"`
	DifferentialErrorCheck     int     `pulse:"differential_error_check"`
	DifferentialErrorTolerance float64 `pulse:"differential_error_tolerance"`
	MaxTimeCheck               int     `pulse:"max_time_check"`
	MaxTime                    float64 `pulse:"max_time"`
	IncreasingErrorCheck       int     `pulse:"increasing_error_check"`
}

func (in *Input) validate() error {
	switch {
	case in.TipAngle <= 0 || in.TipAngle > 360:
		return pulseerr.Parameterf("tip_angle", "must be in (0, 360], got %g", in.TipAngle)
	case in.Bandwidth < 0:
		return pulseerr.Parameterf("bandwidth", "must not be negative, got %g", in.Bandwidth)
	case in.FrequencyPoints < 1:
		return pulseerr.Parameterf("frequency_points", "must be at least 1, got %d", in.FrequencyPoints)
	case in.B1Immunity < 0 || in.B1Immunity >= 100:
		return pulseerr.Parameterf("b1_immunity", "must be in [0, 100), got %g", in.B1Immunity)
	case in.B1Points < 1:
		return pulseerr.Parameterf("b1_points", "must be at least 1, got %d", in.B1Points)
	case in.StepSize <= 0 || in.StepSize > 1:
		return pulseerr.Parameterf("step_size", "must be in (0, 1], got %g", in.StepSize)
	case in.SARLimit < 0:
		return pulseerr.Parameterf("sar_limit", "must not be negative, got %g", in.SARLimit)
	case in.MaxIterationCheck != 0 && in.MaxIterations < 1:
		return pulseerr.Parameterf("max_iterations", "must be at least 1, got %d", in.MaxIterations)
	case in.ResidualErrorCheck != 0 && in.ResidualErrorTolerance < 0:
		return pulseerr.Parameterf("residual_error_tolerance", "must not be negative, got %g", in.ResidualErrorTolerance)
	case in.DifferentialErrorCheck != 0 && in.DifferentialErrorTolerance < 0:
		return pulseerr.Parameterf("differential_error_tolerance", "must not be negative, got %g", in.DifferentialErrorTolerance)
	case in.MaxTimeCheck != 0 && in.MaxTime <= 0:
		return pulseerr.Parameterf("max_time", "must be positive, got %g", in.MaxTime)
	}
	return nil
}

// Run refines the prior waveform. The loop ends on the first enabled halt
// condition; cancellation of ctx is checked once per iteration and aborts
// the stage.
func Run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	if err := req.RequirePrior(); err != nil {
		return nil, err
	}
	in := req.Input.(*Input)
	if err := in.validate(); err != nil {
		return nil, err
	}

	prior := req.Prior
	consts := req.Consts()
	prob := newProblem(in, consts, prior.Waveform, prior.Dwell)
	if req.Machine != nil && req.Machine.MaxB1Field > 0 {
		prob.maxB1 = req.Machine.MaxB1Field
	}
	if in.SARLimit > 0 {
		prob.maxEnergy = in.SARLimit * energy(prior.Waveform)
	}

	logger := ctxlog.FromContext(ctx)
	acc := newAccumulator(prob.constrain(prior.Waveform), prob)
	start := req.Now()
	for acc.halt == "" {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ocn cancelled after %d iterations: %w", acc.iterations, err)
		}
		if reason := checkBefore(in, acc, req.Now().Sub(start).Seconds()); reason != "" {
			acc.halt = reason
			break
		}
		acc = step(in, prob, acc)
	}
	logger.Debug("Refinement halted.", "reason", acc.halt, "iterations", acc.iterations, "residual", acc.err)

	st := prior.Clone()
	st.Waveform = acc.wave
	st.Scalars["tip_angle"] = in.TipAngle

	res := kernel.NewResult(st)
	res.Diagnostics["residual_errors"] = acc.residuals
	res.Diagnostics["delta_b1"] = acc.deltas
	res.SetInt("iterations", acc.iterations)
	res.SetFloat("residual_error", acc.err)
	res.SetText("halt_reason", acc.halt)
	if acc.halt == HaltErrorIncreasing {
		res.Warnf("residual error increased at iteration %d, kept the previous waveform", acc.iterations)
	}
	return res, nil
}

// checkBefore evaluates the halt conditions that do not depend on a new
// iterate.
func checkBefore(in *Input, acc accumulator, elapsed float64) string {
	switch {
	case in.MaxIterationCheck != 0 && acc.iterations >= in.MaxIterations:
		return HaltMaxIterations
	case in.MaxIterationCheck == 0 && in.MaxTimeCheck == 0 && acc.iterations >= iterationLimit:
		return HaltIterationLimit
	case in.ResidualErrorCheck != 0 && acc.err <= in.ResidualErrorTolerance:
		return HaltResidualError
	case in.MaxTimeCheck != 0 && elapsed >= in.MaxTime:
		return HaltMaxTime
	}
	return ""
}

// step performs one descent iteration and returns the next accumulator.
func step(in *Input, prob *problem, acc accumulator) accumulator {
	grad := prob.gradient(acc.wave)
	gmax := 0.0
	for _, g := range grad {
		gmax = math.Max(gmax, math.Hypot(real(g), imag(g)))
	}
	if gmax == 0 {
		acc.halt = HaltZeroGradient
		return acc
	}

	alpha := complex(in.StepSize*prob.reference/gmax, 0)
	next := make([]complex128, len(acc.wave))
	for i, w := range acc.wave {
		next[i] = w - alpha*grad[i]
	}
	next = prob.constrain(next)
	nextErr := prob.cost(next)

	acc.iterations++
	acc.residuals = append(acc.residuals, nextErr)
	acc.deltas = append(acc.deltas, maxDelta(acc.wave, next))

	if in.IncreasingErrorCheck != 0 && nextErr > acc.err {
		acc.halt = HaltErrorIncreasing
		return acc
	}
	change := math.Abs(acc.err - nextErr)
	acc.wave, acc.err = next, nextErr
	if in.DifferentialErrorCheck != 0 && change < in.DifferentialErrorTolerance {
		acc.halt = HaltDifferentialError
	}
	return acc
}

// Register registers the kernel with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKernel("ocn", &registry.RegisteredKernel{
		Kernel:     kernel.Func(Run),
		NewInput:   func() any { return new(Input) },
		NeedsPrior: true,
		Constraints: machine.Policies{
			machine.B1Maximum:       machine.Clip,
			machine.GradientMaximum: machine.Fatal,
		},
	})
}
