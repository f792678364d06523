package numeric

import (
	"math"
	"math/cmplx"
)

// logFloor keeps log() finite where a magnitude touches zero.
const logFloor = 1e-300

// MinPhaseSpectrum returns the minimum-phase spectrum whose magnitude on the
// n-point DFT grid equals mag. It folds the real cepstrum onto its causal
// half and exponentiates.
func MinPhaseSpectrum(mag []float64) []complex128 {
	n := len(mag)
	logMag := make([]complex128, n)
	for i, m := range mag {
		logMag[i] = complex(math.Log(math.Max(m, logFloor)), 0)
	}
	c := IFFT(logMag)
	for k := 1; k < (n+1)/2; k++ {
		c[k] *= 2
	}
	for k := n/2 + 1; k < n; k++ {
		c[k] = 0
	}
	spec := FFT(c)
	for i := range spec {
		spec[i] = cmplx.Exp(spec[i])
	}
	return spec
}

// MinPhaseFilter turns a linear-phase filter h (amplitude approximating a
// squared magnitude) into a minimum-phase filter of length (len(h)+1)/2
// whose magnitude is the square root of that amplitude.
func MinPhaseFilter(h []float64, oversample int) []float64 {
	l := len(h)
	npad := NextPow2(l * oversample)
	center := float64(l-1) / 2

	// Zero-phase amplitude of h on the padded grid.
	amp := make([]float64, npad)
	lowest := math.Inf(1)
	for j := range amp {
		w := 2 * math.Pi * float64(j) / float64(npad)
		var s float64
		for k, hk := range h {
			s += hk * math.Cos(w*(float64(k)-center))
		}
		amp[j] = s
		lowest = math.Min(lowest, s)
	}
	// Lift the stopband ripple so the amplitude is non-negative.
	if lowest < 0 {
		for j := range amp {
			amp[j] -= lowest * 1.000001
		}
	}
	mag := make([]float64, npad)
	for j, a := range amp {
		mag[j] = math.Sqrt(math.Abs(a))
	}

	coeffs := IFFT(MinPhaseSpectrum(mag))
	out := make([]float64, (l+1)/2)
	for i := range out {
		out[i] = real(coeffs[i])
	}
	return out
}
