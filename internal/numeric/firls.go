package numeric

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularDesign is returned when the filter design matrix has no
// well-conditioned least-squares solution.
var ErrSingularDesign = errors.New("singular filter design")

// FIRLS designs a symmetric (linear-phase) FIR filter with n taps whose
// amplitude response best fits, in weighted least squares, a piecewise-linear
// target. edges lists band edge pairs in normalised frequency (1 = Nyquist),
// desired the target amplitude at each edge, weights one weight per band.
func FIRLS(n int, edges, desired, weights []float64) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("firls: need at least 2 taps, got %d", n)
	}
	if len(edges)%2 != 0 || len(edges) != len(desired) || len(weights) != len(edges)/2 {
		return nil, fmt.Errorf("firls: %d edges, %d amplitudes and %d weights do not describe whole bands", len(edges), len(desired), len(weights))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] < edges[i-1] || edges[i] > 1 || edges[i-1] < 0 {
			return nil, fmt.Errorf("firls: band edges must be ascending within [0, 1]")
		}
	}

	// Half-filter basis: offsets from the filter centre.
	odd := n%2 == 1
	m := n / 2
	if odd {
		m = (n-1)/2 + 1
	}
	offset := func(i int) float64 {
		if odd {
			return float64(i)
		}
		return float64(i) + 0.5
	}

	density := 16 * n
	var rows [][]float64
	var rhs []float64
	for b := 0; b < len(edges)/2; b++ {
		f1, f2 := edges[2*b], edges[2*b+1]
		d1, d2 := desired[2*b], desired[2*b+1]
		sw := math.Sqrt(weights[b])
		points := max(8, int(math.Ceil(float64(density)*(f2-f1))))
		for p := 0; p <= points; p++ {
			f := f1 + (f2-f1)*float64(p)/float64(points)
			target := d1
			if f2 > f1 {
				target = d1 + (d2-d1)*(f-f1)/(f2-f1)
			}
			w := math.Pi * f
			row := make([]float64, m)
			for i := range row {
				scale := 2.0
				if odd && i == 0 {
					scale = 1
				}
				row[i] = sw * scale * math.Cos(offset(i)*w)
			}
			rows = append(rows, row)
			rhs = append(rhs, sw*target)
		}
	}

	a := mat.NewDense(len(rows), m, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}
	var g mat.VecDense
	if err := g.SolveVec(a, mat.NewVecDense(len(rhs), rhs)); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %g", ErrSingularDesign, float64(cond))
		}
		return nil, fmt.Errorf("%w: %v", ErrSingularDesign, err)
	}

	h := make([]float64, n)
	for i := 0; i < m; i++ {
		gi := g.AtVec(i)
		if odd {
			c := (n - 1) / 2
			h[c+i] = gi
			h[c-i] = gi
		} else {
			h[n/2+i] = gi
			h[n/2-1-i] = gi
		}
	}
	return h, nil
}
