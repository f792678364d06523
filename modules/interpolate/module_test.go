package interpolate

import (
	"context"
	"errors"
	"math/cmplx"
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int, dwell float64) *pulse.State {
	wave := make([]complex128, n)
	for i := range wave {
		wave[i] = complex(float64(i+1), 0)
	}
	return pulse.NewState(wave, dwell)
}

func run(t *testing.T, prior *pulse.State, in *Input) *kernel.Result {
	t.Helper()
	res, err := Run(context.Background(), &kernel.Request{Prior: prior, Input: in, Constants: machine.DefaultConstants()})
	require.NoError(t, err)
	require.NoError(t, res.State.Validate())
	return res
}

func TestInterpolate_PreservesDuration(t *testing.T) {
	for _, tc := range []struct {
		n      int
		factor float64
		want   int
	}{
		{n: 100, factor: 2, want: 200},
		{n: 100, factor: 0.5, want: 50},
		{n: 7, factor: 1.3, want: 9},
		{n: 256, factor: 1, want: 256},
	} {
		prior := ramp(tc.n, 10e-6)
		res := run(t, prior, &Input{Factor: tc.factor})
		st := res.State

		require.Equal(t, tc.want, st.Len())
		assert.Equal(t, prior.Duration()/float64(tc.want), st.Dwell)
		assert.InDelta(t, prior.Duration(), float64(st.Len())*st.Dwell, 1e-18)
		for n, at := range st.Time {
			assert.InDelta(t, float64(n)*st.Dwell, at, 1e-18)
		}

		steps, _ := res.Outputs["time_steps"].AsBigFloat().Int64()
		assert.Equal(t, int64(tc.want), steps)
		dwellUs, _ := res.Outputs["dwell_time"].AsBigFloat().Float64()
		assert.InDelta(t, st.Dwell*1e6, dwellUs, 1e-9)
	}
}

func TestInterpolate_IdentityFactorKeepsSamples(t *testing.T) {
	prior := ramp(16, 5e-6)
	st := run(t, prior, &Input{Factor: 1}).State
	assert.Equal(t, prior.Waveform, st.Waveform)
}

func TestInterpolate_RescalesTipAngle(t *testing.T) {
	prior := ramp(10, 10e-6)
	prior.Scalars["tip_angle"] = 90

	res := run(t, prior, &Input{Factor: 1, TipAngle: 45})
	assert.InDelta(t, prior.PeakAmplitude()/2, res.State.PeakAmplitude(), 1e-12)
	assert.Equal(t, 45.0, res.State.Scalars["tip_angle"])
	assert.Empty(t, res.Warnings)
}

func TestInterpolate_SmallTipEstimate(t *testing.T) {
	c := machine.DefaultConstants()
	// A hard pulse of 30 degrees.
	dwell := 10e-6
	amp := c.MicroTesla(30 * c.DegToRad / (20 * dwell))
	wave := make([]complex128, 20)
	for i := range wave {
		wave[i] = complex(amp, 0)
	}
	prior := pulse.NewState(wave, dwell)

	res := run(t, prior, &Input{Factor: 2, TipAngle: 60})
	require.Len(t, res.Warnings, 1)
	for _, v := range res.State.Waveform {
		assert.InDelta(t, 2*amp, cmplx.Abs(v), 1e-9)
	}
}

func TestInterpolate_Gradient(t *testing.T) {
	prior := ramp(10, 10e-6)
	prior.Gradient = []float64{1, 1, 1, 1}
	prior.GradientTime = []float64{0, 25e-6, 50e-6, 75e-6}

	st := run(t, prior, &Input{Factor: 2}).State
	require.Len(t, st.Gradient, 8)
	assert.InDelta(t, 87.5e-6, st.GradientTime[7], 1e-18)
	for _, g := range st.Gradient {
		assert.InDelta(t, 1, g, 1e-12)
	}
}

func TestInterpolate_Rejects(t *testing.T) {
	prior := ramp(4, 10e-6)

	_, err := Run(context.Background(), &kernel.Request{Prior: prior, Input: &Input{Factor: 0}})
	var pe *pulseerr.ParameterError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "interpolation_factor", pe.Field)

	_, err = Run(context.Background(), &kernel.Request{Prior: prior, Input: &Input{Factor: 0.1}})
	var ae *pulseerr.AlgorithmError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "too_few_points", ae.Code)

	_, err = Run(context.Background(), &kernel.Request{Input: &Input{Factor: 2}})
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "missing_prior", ae.Code)
}
