package numeric

import "math"

// BandWidth returns the width of the widest contiguous region in which
// profile ≥ threshold. Crossings are located by linear interpolation between
// neighbouring frequency samples; freqs must be ascending.
func BandWidth(freqs, profile []float64, threshold float64) float64 {
	best := 0.0
	inside := false
	var start float64
	for i := range profile {
		above := profile[i] >= threshold
		switch {
		case above && !inside:
			inside = true
			start = freqs[i]
			if i > 0 {
				start = crossing(freqs[i-1], freqs[i], profile[i-1], profile[i], threshold)
			}
		case !above && inside:
			inside = false
			end := crossing(freqs[i-1], freqs[i], profile[i-1], profile[i], threshold)
			best = math.Max(best, end-start)
		}
	}
	if inside {
		best = math.Max(best, freqs[len(freqs)-1]-start)
	}
	return best
}

func crossing(f0, f1, p0, p1, threshold float64) float64 {
	if p1 == p0 {
		return f0
	}
	return f0 + (threshold-p0)*(f1-f0)/(p1-p0)
}

// Linspace returns n evenly spaced samples from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{(lo + hi) / 2}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}
