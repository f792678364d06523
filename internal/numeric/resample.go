package numeric

import "math"

// Resample linearly resamples xs to n samples spanning the same duration.
// Samples are taken at interval centres, so the first and last samples of
// the output sit half a new dwell inside the pulse.
func Resample(xs []complex128, n int) []complex128 {
	if n <= 0 || len(xs) == 0 {
		return nil
	}
	out := make([]complex128, n)
	ratio := float64(len(xs)) / float64(n)
	last := float64(len(xs) - 1)
	for k := range out {
		x := (float64(k)+0.5)*ratio - 0.5
		x = math.Min(math.Max(x, 0), last)
		i := int(math.Floor(x))
		if i >= len(xs)-1 {
			out[k] = xs[len(xs)-1]
			continue
		}
		f := complex(x-float64(i), 0)
		out[k] = xs[i]*(1-f) + xs[i+1]*f
	}
	return out
}

// ResampleReal is Resample for real samples.
func ResampleReal(xs []float64, n int) []float64 {
	zs := make([]complex128, len(xs))
	for i, x := range xs {
		zs[i] = complex(x, 0)
	}
	out := make([]float64, 0, n)
	for _, z := range Resample(zs, n) {
		out = append(out, real(z))
	}
	return out
}
