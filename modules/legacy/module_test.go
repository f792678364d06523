package legacy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(st *pulse.State) *Input {
	return &Input{
		Waveform:     pulse.EncodeComplexSeries(st.Waveform),
		TimeAxis:     pulse.EncodeSeries(st.Time),
		Gradient:     pulse.EncodeSeries(st.Gradient),
		GradientAxis: pulse.EncodeSeries(st.GradientTime),
	}
}

func TestLegacy_RestoresStateVerbatim(t *testing.T) {
	want := pulse.NewState([]complex128{1, complex(0.25, -3), complex(1e-9, 7.5), -2}, 2.5e-6)
	want.Gradient = []float64{0, 1.5, 3}
	want.GradientTime = []float64{0, 1e-5, 2e-5}

	res, err := Run(context.Background(), &kernel.Request{Input: encode(want)})
	require.NoError(t, err)
	// The dwell is re-derived from the axis end points.
	assert.Empty(t, cmp.Diff(want, res.State, cmpopts.EquateApprox(0, 1e-18)))
}

func TestLegacy_NoneMeansAbsent(t *testing.T) {
	want := pulse.NewState([]complex128{1, 2, 3}, 1e-5)
	in := encode(want)
	require.Equal(t, pulse.None, in.Gradient)

	res, err := Run(context.Background(), &kernel.Request{Input: in})
	require.NoError(t, err)
	assert.False(t, res.State.HasGradient())
}

func TestLegacy_Rejects(t *testing.T) {
	good := encode(pulse.NewState([]complex128{1, 2, 3}, 1e-5))

	cases := map[string]struct {
		mutate func(in *Input)
		field  string
		code   string
	}{
		"empty gradient instead of none": {mutate: func(in *Input) { in.Gradient = "" }, field: "gradient"},
		"missing waveform":               {mutate: func(in *Input) { in.Waveform = pulse.None }, field: "waveform"},
		"corrupt base64":                 {mutate: func(in *Input) { in.TimeAxis = "!!" }, field: "time_axis"},
		"length mismatch": {mutate: func(in *Input) {
			in.TimeAxis = pulse.EncodeSeries([]float64{0, 1e-5})
		}, code: "length_mismatch"},
		"gradient without axis": {mutate: func(in *Input) {
			in.Gradient = pulse.EncodeSeries([]float64{1, 2})
		}, code: "invalid_legacy_state"},
		"shifted axis": {mutate: func(in *Input) {
			in.TimeAxis = pulse.EncodeSeries([]float64{5e-6, 1.5e-5, 2.5e-5})
		}, code: "invalid_time_axis"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := *good
			tc.mutate(&in)
			_, err := Run(context.Background(), &kernel.Request{Input: &in})
			require.Error(t, err)
			if tc.field != "" {
				var pe *pulseerr.ParameterError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, tc.field, pe.Field)
				return
			}
			var ae *pulseerr.AlgorithmError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tc.code, ae.Code)
		})
	}
}
