// Package rootreflect provides the root reflection kernel. Reflecting a
// root r of the A or B polynomial to 1/r* and rescaling by |r| leaves the
// polynomial's magnitude on the unit circle unchanged, so the slice profile
// is kept while the pulse's phase and energy distribution change.
package rootreflect

import (
	"context"
	"math"
	"math/cmplx"
	"slices"
	"strconv"
	"strings"

	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/numeric"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Choice ordinals.
const (
	polyB = 0
	polyA = 1

	selectList   = 0
	selectWindow = 1
)

// Input defines the arguments for the rootreflect kernel.
type Input struct {
	Polynomial int     `pulse:"polynomial"`
	Selection  int     `pulse:"selection"`
	FlipRoots  string  `pulse:"flip_roots"`
	AngleMin   float64 `pulse:"angle_min"`
	AngleMax   float64 `pulse:"angle_max"`
}

// Run reflects the selected roots of the prior pulse.
func Run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	if err := req.RequirePrior(); err != nil {
		return nil, err
	}
	in := req.Input.(*Input)
	if in.Polynomial != polyA && in.Polynomial != polyB {
		return nil, pulseerr.Parameterf("polynomial", "unknown polynomial %d", in.Polynomial)
	}
	consts := req.Consts()
	prior := req.Prior

	a, b := numeric.RFToAB(consts.Rotations(prior.Waveform, prior.Dwell))
	target := b
	if in.Polynomial == polyA {
		target = a
	}

	roots, err := numeric.Roots(target)
	if err != nil {
		return nil, pulseerr.Algorithmf("root_finding", "%v", err)
	}
	numeric.MergeNearRoots(roots)
	numeric.SortRoots(roots)

	selected, err := selectRoots(in, roots)
	if err != nil {
		return nil, err
	}

	lead, degreeDrop := firstNonZero(target)
	for _, i := range selected {
		r := roots[i]
		if r == 0 {
			return nil, pulseerr.Algorithmf("zero_root", "root %d lies at the origin and has no reflection", i)
		}
		lead *= complex(cmplx.Abs(r), 0)
		roots[i] = 1 / cmplx.Conj(r)
	}
	flipped := append(make([]complex128, degreeDrop), numeric.FromRoots(lead, roots)...)

	if in.Polynomial == polyB {
		b = flipped
		a = numeric.BToA(b, req.Machine.Oversampling())
	} else {
		a = flipped
	}

	rf, err := numeric.ABToRF(a, b)
	if err != nil {
		return nil, pulseerr.Algorithmf("inverse_slr", "%v", err)
	}

	st := prior.Clone()
	st.Waveform = consts.FromRotations(rf, prior.Dwell)

	ctxlog.FromContext(ctx).Debug("Roots reflected.", "polynomial", in.Polynomial, "roots", len(roots), "flipped", len(selected))

	res := kernel.NewResult(st)
	res.SetText("flipped_roots", joinInts(selected))
	res.SetInt("root_count", len(roots))
	if len(selected) == 0 {
		res.Warnf("no roots selected, pulse left unchanged")
	}
	return res, nil
}

// selectRoots returns the sorted, unique indices of the roots to flip.
func selectRoots(in *Input, roots []complex128) ([]int, error) {
	var out []int
	switch in.Selection {
	case selectList:
		for _, tok := range strings.Split(in.FlipRoots, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			i, err := strconv.Atoi(tok)
			if err != nil {
				return nil, pulseerr.Parameterf("flip_roots", "%q is not a root index", tok)
			}
			if i < 0 || i >= len(roots) {
				return nil, pulseerr.Parameterf("flip_roots", "root %d is out of range, the polynomial has %d roots", i, len(roots))
			}
			out = append(out, i)
		}
	case selectWindow:
		if in.AngleMin > in.AngleMax {
			return nil, pulseerr.Parameterf("angle_min", "%g is above angle_max %g", in.AngleMin, in.AngleMax)
		}
		for i, r := range roots {
			deg := cmplx.Phase(r) * 180 / math.Pi
			if deg >= in.AngleMin && deg <= in.AngleMax {
				out = append(out, i)
			}
		}
	default:
		return nil, pulseerr.Parameterf("selection", "unknown selection %d", in.Selection)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// firstNonZero returns the leading coefficient and how many zero
// coefficients precede it.
func firstNonZero(p []complex128) (complex128, int) {
	for i, c := range p {
		if c != 0 {
			return c, i
		}
	}
	return 0, len(p)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

// Register registers the kernel with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKernel("rootreflect", &registry.RegisteredKernel{
		Kernel:     kernel.Func(Run),
		NewInput:   func() any { return new(Input) },
		NeedsPrior: true,
		Constraints: machine.Policies{
			machine.B1Maximum: machine.Fatal,
		},
	})
}
