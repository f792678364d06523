// Package pulse defines the State threaded between pipeline stages together
// with the text and legacy encodings used to bring pulses in and out.
package pulse

import (
	"fmt"
	"maps"
	"math"
	"math/cmplx"
	"slices"
)

// axisTolerance bounds the relative deviation allowed between a time axis
// sample and n×dwell.
const axisTolerance = 1e-9

// State is the pulse carried from one stage to the next. Waveform samples are
// complex B1 in µT; time axes are in seconds; the gradient is in mT/m.
type State struct {
	Waveform []complex128
	Time     []float64
	Dwell    float64

	Gradient     []float64
	GradientTime []float64

	// Scalars holds named numeric outputs that later stages may read, such
	// as the tip angle a synthesis stage was designed for.
	Scalars map[string]float64
}

// NewState builds a state with a uniform time axis for the given samples.
func NewState(waveform []complex128, dwell float64) *State {
	return &State{
		Waveform: waveform,
		Time:     NewTimeAxis(len(waveform), dwell),
		Dwell:    dwell,
		Scalars:  make(map[string]float64),
	}
}

// NewTimeAxis returns n samples at n×dwell.
func NewTimeAxis(n int, dwell float64) []float64 {
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = float64(i) * dwell
	}
	return axis
}

// Len is the number of waveform samples.
func (s *State) Len() int { return len(s.Waveform) }

// Duration is time_steps × dwell.
func (s *State) Duration() float64 { return float64(len(s.Waveform)) * s.Dwell }

// HasGradient reports whether the gradient channel is present.
func (s *State) HasGradient() bool { return s.Gradient != nil }

// PeakAmplitude is the largest |B1| sample.
func (s *State) PeakAmplitude() float64 {
	peak := 0.0
	for _, v := range s.Waveform {
		peak = math.Max(peak, cmplx.Abs(v))
	}
	return peak
}

// Validate checks the structural invariants of a state.
func (s *State) Validate() error {
	if len(s.Waveform) != len(s.Time) {
		return fmt.Errorf("waveform has %d samples but time axis has %d", len(s.Waveform), len(s.Time))
	}
	if len(s.Waveform) > 0 && !(s.Dwell > 0) {
		return fmt.Errorf("dwell time must be positive, got %g", s.Dwell)
	}
	for n, t := range s.Time {
		want := float64(n) * s.Dwell
		if math.Abs(t-want) > axisTolerance*math.Max(s.Dwell, math.Abs(want)) {
			return fmt.Errorf("time axis sample %d is %g, expected %g", n, t, want)
		}
	}
	for n, v := range s.Waveform {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return fmt.Errorf("waveform sample %d is not finite", n)
		}
	}

	if (s.Gradient == nil) != (s.GradientTime == nil) {
		return fmt.Errorf("gradient and gradient axis must both be present or both absent")
	}
	if s.Gradient != nil {
		if len(s.Gradient) != len(s.GradientTime) {
			return fmt.Errorf("gradient has %d samples but gradient axis has %d", len(s.Gradient), len(s.GradientTime))
		}
		if err := strictlyIncreasing(s.GradientTime); err != nil {
			return fmt.Errorf("gradient axis: %w", err)
		}
	}
	return nil
}

func strictlyIncreasing(axis []float64) error {
	for i := 1; i < len(axis); i++ {
		if !(axis[i] > axis[i-1]) {
			return fmt.Errorf("not strictly increasing at sample %d", i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Waveform: slices.Clone(s.Waveform),
		Time:     slices.Clone(s.Time),
		Dwell:    s.Dwell,
		Scalars:  maps.Clone(s.Scalars),
	}
	if s.Gradient != nil {
		out.Gradient = slices.Clone(s.Gradient)
		out.GradientTime = slices.Clone(s.GradientTime)
	}
	if out.Scalars == nil {
		out.Scalars = make(map[string]float64)
	}
	return out
}

// Scalar returns a named scalar output.
func (s *State) Scalar(name string) (float64, bool) {
	if s == nil || s.Scalars == nil {
		return 0, false
	}
	v, ok := s.Scalars[name]
	return v, ok
}
