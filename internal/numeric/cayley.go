package numeric

import (
	"fmt"
	"math"
	"math/cmplx"
)

// RFToAB runs the forward SLR transform. rf holds per-sample rotations in
// radians (magnitude is the flip, phase the axis). The returned Cayley-Klein
// polynomials A and B are in z⁻¹, lowest power first, each of length len(rf).
//
// Each sample applies
//
//	Aⱼ = C·Aⱼ₋₁ − S*·z⁻¹·Bⱼ₋₁
//	Bⱼ = S·Aⱼ₋₁ + C·z⁻¹·Bⱼ₋₁
//
// with C = cos(|rf|/2) and S = e^(i∠rf)·sin(|rf|/2).
func RFToAB(rf []complex128) (a, b []complex128) {
	a = []complex128{1}
	b = nil
	for j, r := range rf {
		half := cmplx.Abs(r) / 2
		c := complex(math.Cos(half), 0)
		s := cmplx.Rect(math.Sin(half), cmplx.Phase(r))
		na := make([]complex128, j+1)
		nb := make([]complex128, j+1)
		for k := 0; k <= j; k++ {
			var ak, bPrev complex128
			if k < len(a) {
				ak = a[k]
			}
			if k >= 1 && k-1 < len(b) {
				bPrev = b[k-1]
			}
			na[k] = c*ak - cmplx.Conj(s)*bPrev
			nb[k] = s*ak + c*bPrev
		}
		a, b = na, nb
	}
	return a, b
}

// ABToRF inverts RFToAB, peeling one sample at a time from the end of the
// pulse. a and b must have equal length.
func ABToRF(a, b []complex128) ([]complex128, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("inverse SLR: A has %d coefficients and B has %d", len(a), len(b))
	}
	n := len(b)
	a = append([]complex128(nil), a...)
	b = append([]complex128(nil), b...)
	rf := make([]complex128, n)
	for j := n - 1; j >= 0; j-- {
		if a[0] == 0 {
			return nil, fmt.Errorf("inverse SLR: A has a zero leading coefficient at sample %d", j)
		}
		ratio := b[0] / a[0]
		theta := 2 * math.Atan(cmplx.Abs(ratio))
		phi := cmplx.Phase(ratio)
		rf[j] = cmplx.Rect(theta, phi)

		c := complex(math.Cos(theta/2), 0)
		s := cmplx.Rect(math.Sin(theta/2), phi)
		na := make([]complex128, j)
		nb := make([]complex128, j)
		for k := 0; k < j; k++ {
			na[k] = c*a[k] + cmplx.Conj(s)*b[k]
			nb[k] = -s*a[k+1] + c*b[k+1]
		}
		a, b = na, nb
	}
	return rf, nil
}

// BToA returns the minimum-phase A polynomial satisfying |A|² + |B|² = 1 on
// the unit circle, evaluated on a grid oversample times longer than b.
func BToA(b []complex128, oversample int) []complex128 {
	n := len(b)
	npad := NextPow2(n * max(oversample, 1))
	padded := make([]complex128, npad)
	copy(padded, b)
	bf := FFT(padded)

	peak := 0.0
	for _, v := range bf {
		peak = math.Max(peak, cmplx.Abs(v))
	}
	scale := 1.0
	if peak >= 1 {
		scale = 1 / (peak + 1e-7)
	}

	mag := make([]float64, npad)
	for i, v := range bf {
		m := cmplx.Abs(v) * scale
		mag[i] = math.Sqrt(math.Max(0, 1-m*m))
	}
	coeffs := IFFT(MinPhaseSpectrum(mag))
	return coeffs[:n]
}

// Profile is the magnetisation produced by a pulse at one frequency offset,
// starting from equilibrium.
type Profile struct {
	Mxy complex128
	Mz  float64
	// B is the Cayley-Klein β at this offset; |B|² is the inversion and
	// refocusing efficiency.
	B complex128
}

// ProfileAt evaluates the Cayley-Klein polynomials at precession angle
// omega per sample.
func ProfileAt(a, b []complex128, omega float64) Profile {
	av := Response(a, omega)
	bv := Response(b, omega)
	return Profile{
		Mxy: 2 * cmplx.Conj(av) * bv,
		Mz:  real(av*cmplx.Conj(av)) - real(bv*cmplx.Conj(bv)),
		B:   bv,
	}
}
