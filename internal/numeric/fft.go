// Package numeric collects the signal-processing building blocks the pulse
// kernels share: transforms, filter design, polynomial roots, the forward and
// inverse SLR transform, Bloch rotations and profile measurement.
//
// Polynomials in z⁻¹ are stored lowest power first, so p[k] multiplies z⁻ᵏ.
// Their frequency response P(ω) = Σ p[k]·e^(-ikω) is the forward DFT of p.
package numeric

import (
	"math/bits"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT returns the unnormalised forward transform X[j] = Σ x[k]·e^(-2πijk/n).
func FFT(x []complex128) []complex128 {
	if len(x) == 0 {
		return nil
	}
	return fourier.NewCmplxFFT(len(x)).Coefficients(nil, x)
}

// IFFT returns the normalised inverse of FFT.
func IFFT(x []complex128) []complex128 {
	n := len(x)
	if n == 0 {
		return nil
	}
	out := fourier.NewCmplxFFT(n).Sequence(nil, x)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// NextPow2 returns the smallest power of two ≥ n.
func NextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
