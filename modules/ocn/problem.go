package ocn

import (
	"math"
	"math/cmplx"

	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/numeric"
	"gonum.org/v1/gonum/floats"
)

// accumulator is the loop state carried from one iteration to the next.
type accumulator struct {
	wave       []complex128
	err        float64
	iterations int
	residuals  []float64
	deltas     []float64
	halt       string
}

func newAccumulator(wave []complex128, prob *problem) accumulator {
	return accumulator{
		wave:      wave,
		err:       prob.cost(wave),
		residuals: []float64{},
		deltas:    []float64{},
	}
}

// isochromat is one frequency offset and B1 scale the pulse is optimised
// for, with its target magnetisation.
type isochromat struct {
	offset float64 // rad/s
	scale  float64
	target numeric.Vec3
}

// problem holds everything fixed for the duration of one refinement.
type problem struct {
	dwell  float64
	w1     float64 // rad/s per µT
	spins  []isochromat
	weight float64
	// reference is the amplitude step_size is relative to.
	reference float64
	maxB1     float64
	maxEnergy float64
}

func newProblem(in *Input, c machine.Constants, wave []complex128, dwell float64) *problem {
	theta := in.TipAngle * c.DegToRad
	duration := dwell * float64(len(wave))
	bwHz := in.Bandwidth * 1e3

	freqs := numeric.Linspace(-bwHz/2, bwHz/2, in.FrequencyPoints)
	scales := []float64{1}
	if in.B1Immunity > 0 && in.B1Points > 1 {
		frac := in.B1Immunity / 100
		scales = numeric.Linspace(1-frac, 1+frac, in.B1Points)
	}

	p := &problem{dwell: dwell, w1: c.RadPerSecond(1)}
	for _, f := range freqs {
		phase := 0.0
		if in.RefocusGradient != 0 {
			phase = 2 * math.Pi * f * duration / 2
		}
		target := numeric.Vec3{
			math.Sin(theta) * math.Sin(phase),
			-math.Sin(theta) * math.Cos(phase),
			math.Cos(theta),
		}
		for _, s := range scales {
			p.spins = append(p.spins, isochromat{offset: 2 * math.Pi * f, scale: s, target: target})
		}
	}
	p.weight = 1 / float64(len(p.spins))

	for _, w := range wave {
		p.reference = math.Max(p.reference, cmplx.Abs(w))
	}
	if p.reference == 0 {
		p.reference = c.MicroTesla(theta / duration)
	}
	return p
}

func (p *problem) omega(w complex128, s isochromat) numeric.Vec3 {
	return numeric.Vec3{s.scale * p.w1 * real(w), s.scale * p.w1 * imag(w), s.offset}
}

// cost is the mean of ½|M - target|² over all isochromats.
func (p *problem) cost(wave []complex128) float64 {
	total := 0.0
	for _, s := range p.spins {
		m := numeric.Vec3{0, 0, 1}
		for _, w := range wave {
			m = numeric.Rotate(m, p.omega(w, s), p.dwell)
		}
		d := numeric.Vec3{m[0] - s.target[0], m[1] - s.target[1], m[2] - s.target[2]}
		total += 0.5 * d.Dot(d)
	}
	return total * p.weight
}

// gradient returns dcost/dRe(b) + i·dcost/dIm(b) per sample from a forward
// magnetisation sweep and a backward costate sweep, each sample's
// contribution taken at its midpoint.
func (p *problem) gradient(wave []complex128) []complex128 {
	n := len(wave)
	gx := make([]float64, n)
	gy := make([]float64, n)
	ms := make([]numeric.Vec3, n+1)
	for _, s := range p.spins {
		ms[0] = numeric.Vec3{0, 0, 1}
		for k, w := range wave {
			ms[k+1] = numeric.Rotate(ms[k], p.omega(w, s), p.dwell)
		}
		end := ms[n]
		lam := numeric.Vec3{end[0] - s.target[0], end[1] - s.target[1], end[2] - s.target[2]}
		coef := p.weight * s.scale * p.w1 * p.dwell
		for k := n - 1; k >= 0; k-- {
			om := p.omega(wave[k], s)
			// Magnetisation and costate meet at the middle of the sample.
			m := numeric.Rotate(ms[k], om, p.dwell/2)
			l := numeric.RotateBack(lam, om, p.dwell/2)
			// e_x × m and e_y × m.
			gx[k] += coef * l.Dot(numeric.Vec3{0, -m[2], m[1]})
			gy[k] += coef * l.Dot(numeric.Vec3{m[2], 0, -m[0]})
			lam = numeric.RotateBack(lam, om, p.dwell)
		}
	}
	out := make([]complex128, n)
	for k := range out {
		out[k] = complex(gx[k], gy[k])
	}
	return out
}

// constrain clips every sample to the B1 maximum and scales the pulse down
// to the energy cap. It returns a new slice.
func (p *problem) constrain(wave []complex128) []complex128 {
	out := make([]complex128, len(wave))
	for i, w := range wave {
		if mag := cmplx.Abs(w); p.maxB1 > 0 && mag > p.maxB1 {
			w *= complex(p.maxB1/mag, 0)
		}
		out[i] = w
	}
	if e := energy(out); p.maxEnergy > 0 && e > p.maxEnergy {
		scale := complex(math.Sqrt(p.maxEnergy/e), 0)
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

// energy is Σ|b|², proportional to the deposited RF power.
func energy(wave []complex128) float64 {
	mags := magnitudes(wave)
	return floats.Dot(mags, mags)
}

func maxDelta(prev, next []complex128) float64 {
	diff := make([]complex128, len(prev))
	for i := range prev {
		diff[i] = next[i] - prev[i]
	}
	if len(diff) == 0 {
		return 0
	}
	return floats.Max(magnitudes(diff))
}

func magnitudes(wave []complex128) []float64 {
	out := make([]float64, len(wave))
	for i, w := range wave {
		out[i] = cmplx.Abs(w)
	}
	return out
}
