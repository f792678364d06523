package slr

import (
	"errors"
	"math"
	"math/cmplx"
	"slices"

	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/numeric"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
)

// rippleTransform maps the magnetisation ripples the user asks for onto
// ripples of the β polynomial.
func rippleTransform(pt PulseType, d1, d2 float64) (float64, float64) {
	switch pt {
	case Excite:
		return math.Sqrt(d1 / 2), d2 / math.Sqrt2
	case Inversion:
		return d1 / 8, math.Sqrt(d2 / 2)
	case SpinEcho:
		return d1 / 4, math.Sqrt(d2)
	case Saturation:
		return d1 / 2, math.Sqrt(d2)
	default:
		return d1, d2
	}
}

// dinf is the empirical transition-width estimate of an optimal linear-phase
// filter with pass ripple d1 and stop ripple d2, in units of 1/duration.
func dinf(d1, d2 float64) float64 {
	const (
		a1 = 5.309e-3
		a2 = 7.114e-2
		a3 = -4.761e-1
		a4 = -2.66e-3
		a5 = -5.941e-1
		a6 = -4.278e-1
	)
	l1, l2 := math.Log10(d1), math.Log10(d2)
	return (a1*l1*l1+a2*l1+a3)*l2 + (a4*l1*l1 + a5*l1 + a6)
}

// designBeta returns n real taps of the β filter with unit gain at DC.
func designBeta(ft FilterType, n int, tb, d1, d2 float64, oversample int) ([]float64, error) {
	taps := n
	width := dinf(d1, d2)
	weights := []float64{1, d1 / d2}
	if ft != Linear {
		// The squared magnitude is designed as a linear-phase filter of
		// twice the length and factored.
		d1, d2 = 2*d1, d2*d2/2
		width = dinf(d1, d2) / 2
		weights = []float64{1, d1 / d2}
		taps = 2*n - 1
	}

	w := width / tb
	if w >= 1 {
		return nil, pulseerr.Algorithmf("time_bandwidth", "time-bandwidth product %.3g is too small for the requested ripples (transition %.3g)", tb, width)
	}
	edges := []float64{0, (1 - w) * tb / float64(n), (1 + w) * tb / float64(n), 1}
	if edges[2] >= 1 {
		return nil, pulseerr.Algorithmf("time_bandwidth", "time-bandwidth product %.3g needs more than %d samples", tb, n)
	}

	h, err := numeric.FIRLS(taps, edges, []float64{1, 1, 0, 0}, weights)
	if err != nil {
		if errors.Is(err, numeric.ErrSingularDesign) {
			return nil, pulseerr.Algorithmf("singular_filter", "%v", err)
		}
		return nil, pulseerr.Algorithmf("filter_design", "%v", err)
	}

	if ft != Linear {
		h = numeric.MinPhaseFilter(h, oversample)
		if ft == MaximumPhase {
			slices.Reverse(h)
		}
	}

	var dc float64
	for _, v := range h {
		dc += v
	}
	if dc == 0 {
		return nil, pulseerr.Algorithmf("singular_filter", "filter has no passband gain")
	}
	for i := range h {
		h[i] /= dc
	}
	return h, nil
}

// measure evaluates the pulse's profile on the design's frequency grid and
// returns its width in Hz under the design's bandwidth convention.
func measure(rf []complex128, pt PulseType, bandwidthHz, dwell float64, settings machine.Settings, pass, reject float64) float64 {
	res := settings.CalcResolution
	if res < 16 {
		res = machine.DefaultSettings().CalcResolution
	}
	a, b := numeric.RFToAB(rf)
	freqs := numeric.Linspace(-2*bandwidthHz, 2*bandwidthHz, res)
	profile := make([]float64, len(freqs))
	peak := 0.0
	for i, f := range freqs {
		p := numeric.ProfileAt(a, b, 2*math.Pi*f*dwell)
		switch pt {
		case Inversion:
			profile[i] = (1 - p.Mz) / 2
		case SpinEcho:
			profile[i] = real(p.B)*real(p.B) + imag(p.B)*imag(p.B)
		default:
			profile[i] = cmplx.Abs(p.Mxy)
		}
		peak = math.Max(peak, profile[i])
	}
	if peak == 0 {
		return 0
	}
	for i := range profile {
		profile[i] /= peak
	}

	threshold := 0.5
	switch settings.BandwidthType {
	case machine.Minimum:
		threshold = 1 - pass
	case machine.Maximum:
		threshold = reject
	}
	return numeric.BandWidth(freqs, profile, threshold)
}
