package machine

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDwell(t *testing.T) {
	spec := &Spec{Name: "t", MinDwellTime: 2, DwellTimeIncrement: 0.5}

	t.Run("fatal minimum", func(t *testing.T) {
		_, _, err := CheckDwell(1e-6, spec, Policies{DwellMinimum: Fatal})
		var cv *pulseerr.ConstraintViolation
		require.True(t, errors.As(err, &cv))
		assert.Equal(t, string(DwellMinimum), cv.Constraint)
		assert.Equal(t, 2.0, cv.Limit)
	})

	t.Run("clip minimum", func(t *testing.T) {
		d, warns, err := CheckDwell(1e-6, spec, Policies{DwellMinimum: Clip})
		require.NoError(t, err)
		assert.InDelta(t, 2e-6, d, 1e-18)
		require.Len(t, warns, 1)
		assert.Contains(t, warns[0], "raised to machine minimum")
	})

	t.Run("round to increment", func(t *testing.T) {
		d, warns, err := CheckDwell(3.3e-6, spec, Policies{DwellIncrement: Clip})
		require.NoError(t, err)
		assert.InDelta(t, 3.5e-6, d, 1e-15)
		assert.Len(t, warns, 1)
	})

	t.Run("fractional microseconds on the grid pass untouched", func(t *testing.T) {
		d, warns, err := CheckDwell(2.5e-6, spec, Policies{DwellMinimum: Fatal, DwellIncrement: Fatal})
		require.NoError(t, err)
		assert.Equal(t, 2.5e-6, d)
		assert.Empty(t, warns)
	})

	t.Run("ignored when undeclared", func(t *testing.T) {
		d, warns, err := CheckDwell(1e-7, spec, nil)
		require.NoError(t, err)
		assert.Equal(t, 1e-7, d)
		assert.Empty(t, warns)
	})
}

func TestCheckB1(t *testing.T) {
	spec := &Spec{MaxB1Field: 10}
	newState := func() *pulse.State {
		return pulse.NewState([]complex128{5, cmplx.Rect(20, 1), -12}, 1e-5)
	}

	_, err := CheckB1(newState(), spec, Policies{B1Maximum: Fatal})
	var cv *pulseerr.ConstraintViolation
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, 20.0, cv.Value)

	st := newState()
	warns, err := CheckB1(st, spec, Policies{B1Maximum: Clip})
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.InDelta(t, 10, st.PeakAmplitude(), 1e-12)
	assert.InDelta(t, 1, cmplx.Phase(st.Waveform[1]), 1e-12)
	assert.Equal(t, complex(5, 0), st.Waveform[0])

	st = newState()
	warns, err = CheckB1(st, spec, Policies{B1Maximum: Warn})
	require.NoError(t, err)
	assert.Len(t, warns, 1)
	assert.InDelta(t, 20, st.PeakAmplitude(), 1e-12)
}

func TestCheckGradient(t *testing.T) {
	spec := &Spec{GradientMaximum: 10, GradientSlewRate: 100}
	newState := func() *pulse.State {
		st := pulse.NewState(make([]complex128, 4), 1e-5)
		st.Gradient = []float64{0, 5, 12, 0}
		st.GradientTime = pulse.NewTimeAxis(4, 1e-5)
		return st
	}

	_, err := CheckGradient(newState(), spec, Policies{GradientMaximum: Fatal})
	assert.Error(t, err)

	st := newState()
	_, err = CheckGradient(st, spec, Policies{GradientMaximum: Clip, GradientSlew: Clip})
	require.NoError(t, err)
	for _, g := range st.Gradient {
		assert.LessOrEqual(t, g, 10.0)
	}
	assert.LessOrEqual(t, maxSlew(st.Gradient, st.GradientTime), 100.0+1e-9)
}

func TestParseBandwidthType(t *testing.T) {
	bt, err := ParseBandwidthType("Minimum")
	require.NoError(t, err)
	assert.Equal(t, Minimum, bt)

	bt, err = ParseBandwidthType("")
	require.NoError(t, err)
	assert.Equal(t, HalfHeight, bt)

	_, err = ParseBandwidthType("fwhm")
	assert.Error(t, err)
}

func TestConstants_Rotations(t *testing.T) {
	c := DefaultConstants()
	b1 := []complex128{complex(5.870, 0), complex(0, -2), 0}

	rf := c.Rotations(b1, 1e-5)
	assert.InDelta(t, 2*math.Pi*42.577478*5.870*1e-5, real(rf[0]), 1e-12)

	back := c.FromRotations(rf, 1e-5)
	for i := range b1 {
		assert.InDelta(t, 0, cmplx.Abs(back[i]-b1[i]), 1e-12)
	}
}
