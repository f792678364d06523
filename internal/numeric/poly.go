package numeric

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
	"slices"
)

const (
	rootMaxIterations = 2000
	rootTolerance     = 1e-13
	rootBackwardError = 1e-6
)

// Roots returns the roots of p[0]·xᵐ + p[1]·xᵐ⁻¹ + … + p[m] using the
// Aberth–Ehrlich simultaneous iteration. For a polynomial in z⁻¹ stored
// lowest power first these are its zeros in the z plane.
func Roots(p []complex128) ([]complex128, error) {
	lo, hi := 0, len(p)
	for lo < hi && p[lo] == 0 {
		lo++
	}
	for hi > lo && p[hi-1] == 0 {
		hi--
	}
	if lo == hi {
		return nil, fmt.Errorf("roots: polynomial is identically zero")
	}
	zeros := len(p) - hi
	q := p[lo:hi]
	m := len(q) - 1

	roots := make([]complex128, 0, m+zeros)
	for range zeros {
		roots = append(roots, 0)
	}
	if m == 0 {
		return roots, nil
	}

	monic := make([]complex128, len(q))
	for i := range q {
		monic[i] = q[i] / q[0]
	}

	// Start on a circle whose radius is the geometric mean of the root
	// magnitudes, rotated off the real axis.
	radius := math.Pow(cmplx.Abs(monic[m]), 1/float64(m))
	if radius == 0 || math.IsInf(radius, 0) || math.IsNaN(radius) {
		radius = 1
	}
	z := make([]complex128, m)
	for k := range z {
		z[k] = cmplx.Rect(radius, 2*math.Pi*float64(k)/float64(m)+0.4)
	}

	for range rootMaxIterations {
		converged := true
		for k := range z {
			ratio := newtonRatio(monic, z[k])
			if ratio == 0 {
				continue
			}
			var sum complex128
			for j := range z {
				if j != k {
					sum += 1 / (z[k] - z[j])
				}
			}
			w := ratio / (1 - ratio*sum)
			if cmplx.IsNaN(w) || cmplx.IsInf(w) {
				continue
			}
			z[k] -= w
			if cmplx.Abs(w) > rootTolerance*math.Max(1, cmplx.Abs(z[k])) {
				converged = false
			}
		}
		if converged {
			break
		}
	}

	for _, r := range z {
		if backwardError(monic, r) > rootBackwardError {
			return nil, fmt.Errorf("roots: iteration did not converge (residual %.3g at %v)", backwardError(monic, r), r)
		}
	}
	return append(roots, z...), nil
}

// newtonRatio returns P(z)/P'(z), evaluating through the reversed polynomial
// outside the unit circle so high degrees do not overflow.
func newtonRatio(p []complex128, z complex128) complex128 {
	m := len(p) - 1
	if cmplx.Abs(z) <= 1 {
		var val, der complex128
		for _, c := range p {
			der = der*z + val
			val = val*z + c
		}
		if der == 0 {
			return 0
		}
		return val / der
	}
	w := 1 / z
	var q, dq complex128
	for i := m; i >= 0; i-- {
		dq = dq*w + q
		q = q*w + p[i]
	}
	den := complex(float64(m), 0)*q - w*dq
	if den == 0 {
		return 0
	}
	return z * q / den
}

// backwardError is |P(z)| relative to Σ|p_k||z|^(m-k), scaled by the
// largest power of |z| so it stays finite.
func backwardError(p []complex128, z complex128) float64 {
	m := len(p) - 1
	az := cmplx.Abs(z)
	if az <= 1 {
		var val complex128
		var scale float64
		for _, c := range p {
			val = val*z + c
			scale = scale*az + cmplx.Abs(c)
		}
		if scale == 0 {
			return 0
		}
		return cmplx.Abs(val) / scale
	}
	w := 1 / z
	aw := 1 / az
	var val complex128
	var scale float64
	for i := m; i >= 0; i-- {
		val = val*w + p[i]
		scale = scale*aw + cmplx.Abs(p[i])
	}
	if scale == 0 {
		return 0
	}
	return cmplx.Abs(val) / scale
}

// FromRoots expands lead·Π(x - r) into coefficients, highest power first.
func FromRoots(lead complex128, roots []complex128) []complex128 {
	p := []complex128{lead}
	for _, r := range roots {
		next := make([]complex128, len(p)+1)
		for i, c := range p {
			next[i] += c
			next[i+1] -= c * r
		}
		p = next
	}
	return p
}

// rootClusterTolerance is the angular and relative distance below which
// roots of a degree n polynomial are treated as one multiple root. It stays
// below a quarter of the mean unit-circle spacing.
func rootClusterTolerance(n int) float64 {
	if n < 1 {
		return 4e-3
	}
	return math.Min(4e-3, math.Pi/(4*float64(n)))
}

// MergeNearRoots replaces every cluster of roots closer than the cluster
// tolerance (relative to max(1, |r|)) with the cluster's centroid. The
// iteration splits a multiple root into nearby simple ones; the centroid is
// the well conditioned estimate of the multiple root.
func MergeNearRoots(roots []complex128) {
	n := len(roots)
	tol := rootClusterTolerance(n)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range roots {
		for j := i + 1; j < n; j++ {
			if cmplx.Abs(roots[i]-roots[j]) < tol*math.Max(1, cmplx.Abs(roots[i])) {
				parent[find(j)] = find(i)
			}
		}
	}

	sums := make(map[int]complex128)
	counts := make(map[int]int)
	for i, r := range roots {
		c := find(i)
		sums[c] += r
		counts[c]++
	}
	for i := range roots {
		c := find(i)
		if counts[c] > 1 {
			roots[i] = sums[c] / complex(float64(counts[c]), 0)
		}
	}
}

// SortRoots orders roots by angle in (-π, π], grouping roots whose angles
// lie within the cluster tolerance of each other, including across ±π.
// Inside a group roots are ordered by distance from the unit circle,
// |log|r||, with the inside root of a reciprocal pair first. Reflecting r
// to 1/r* keeps both keys, so a root keeps its index when it is reflected.
func SortRoots(roots []complex128) {
	n := len(roots)
	if n < 2 {
		return
	}
	tol := rootClusterTolerance(n)
	angle := func(z complex128) float64 {
		a := cmplx.Phase(z)
		if a <= -math.Pi+tol {
			a += 2 * math.Pi
		}
		return a
	}
	slices.SortStableFunc(roots, func(a, b complex128) int {
		return cmp.Compare(angle(a), angle(b))
	})

	start := 0
	for i := 1; i <= n; i++ {
		if i < n && angle(roots[i])-angle(roots[i-1]) < tol {
			continue
		}
		slices.SortStableFunc(roots[start:i], func(a, b complex128) int {
			da, db := math.Log(cmplx.Abs(a)), math.Log(cmplx.Abs(b))
			// A reciprocal pair has equal |log|r|| up to rounding.
			if math.Abs(math.Abs(da)-math.Abs(db)) >= tol {
				return cmp.Compare(math.Abs(da), math.Abs(db))
			}
			return cmp.Compare(da, db)
		})
		start = i
	}
}

// Response evaluates P(ω) = Σ p[k]·e^(-ikω).
func Response(p []complex128, omega float64) complex128 {
	x := cmplx.Rect(1, -omega)
	var acc complex128
	for k := len(p) - 1; k >= 0; k-- {
		acc = acc*x + p[k]
	}
	return acc
}
