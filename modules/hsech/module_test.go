package hsech

import (
	"context"
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/numeric"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hs1() *Input {
	return &Input{TipAngle: 180, TimeSteps: 512, Duration: 10, Cycles: 5, Power: 1, Sharpness: 5.3}
}

func run(t *testing.T, in *Input) *kernel.Result {
	t.Helper()
	res, err := Run(context.Background(), &kernel.Request{Input: in, Constants: machine.DefaultConstants()})
	require.NoError(t, err)
	require.NoError(t, res.State.Validate())
	return res
}

func output(t *testing.T, res *kernel.Result, name string) float64 {
	t.Helper()
	f, _ := res.Outputs[name].AsBigFloat().Float64()
	return f
}

// finalMz simulates the pulse at an offset of hz from equilibrium.
func finalMz(st *pulse.State, hz float64) float64 {
	c := machine.DefaultConstants()
	m := numeric.Vec3{0, 0, 1}
	for _, w := range st.Waveform {
		w1 := c.RadPerSecond(1)
		m = numeric.Rotate(m, numeric.Vec3{w1 * real(w), w1 * imag(w), 2 * math.Pi * hz}, st.Dwell)
	}
	return m[2]
}

func TestHSech_PeakAmplitude(t *testing.T) {
	res := run(t, hs1())
	c := machine.DefaultConstants()
	want := c.MicroTesla(math.Sqrt(5) * 5.3 / 5e-3)

	// The envelope peaks between the two centre samples.
	assert.InDelta(t, want, res.State.PeakAmplitude(), want*1e-3)
	assert.InDelta(t, res.State.PeakAmplitude(), output(t, res, "peak_b1"), 1e-12)

	edge := cmplx.Abs(res.State.Waveform[0]) / want
	assert.InDelta(t, 1/math.Cosh(5.3*(1-1.0/512)), edge, 1e-6)
}

func TestHSech_BandwidthAndCycles(t *testing.T) {
	derived := run(t, hs1())
	assert.InDelta(t, 2*5*5.3/(math.Pi*10e-3)/1e3, output(t, derived, "bandwidth_out"), 1e-12)
	assert.Equal(t, 5.0, output(t, derived, "cycles_out"))

	in := hs1()
	in.Bandwidth = 2
	explicit := run(t, in)
	assert.InDelta(t, 2, output(t, explicit, "bandwidth_out"), 1e-12)
	assert.InDelta(t, 2e3*math.Pi*10e-3/(2*5.3), output(t, explicit, "cycles_out"), 1e-12)
}

func TestHSech_SweepIsAntisymmetric(t *testing.T) {
	st := run(t, hs1()).State
	n := st.Len()
	freq := func(k int) float64 {
		d := cmplx.Phase(st.Waveform[k+1] / st.Waveform[k])
		return d / st.Dwell
	}
	for _, k := range []int{0, 50, 200} {
		assert.InDelta(t, -freq(n-2-k), freq(k), 1e-6*math.Abs(freq(k))+1e-6)
	}
	assert.Less(t, freq(0), 0.0)
}

func TestHSech_Inverts(t *testing.T) {
	st := run(t, hs1()).State
	bw := 2 * 5 * 5.3 / (math.Pi * 10e-3)
	for _, hz := range []float64{0, bw / 4, -bw / 4} {
		assert.Less(t, finalMz(st, hz), -0.9, "offset %g Hz", hz)
	}
	assert.Greater(t, finalMz(st, 3*bw), 0.9, "far off resonance")
}

func TestHSech_HigherPowerFlattens(t *testing.T) {
	in := hs1()
	in.Power = 4
	st := run(t, in).State
	hs1State := run(t, hs1()).State

	quarter := st.Len() / 4
	assert.Greater(t,
		cmplx.Abs(st.Waveform[quarter])/st.PeakAmplitude(),
		cmplx.Abs(hs1State.Waveform[quarter])/hs1State.PeakAmplitude())
}

func TestHSech_Rejects(t *testing.T) {
	for field, mutate := range map[string]func(*Input){
		"time_steps": func(in *Input) { in.TimeSteps = 2 },
		"power":      func(in *Input) { in.Power = 0 },
		"sharpness":  func(in *Input) { in.Sharpness = 0 },
		"cycles":     func(in *Input) { in.Cycles = 0 },
		"bandwidth":  func(in *Input) { in.Bandwidth = -1 },
	} {
		in := hs1()
		mutate(in)
		_, err := Run(context.Background(), &kernel.Request{Input: in})
		var pe *pulseerr.ParameterError
		require.True(t, errors.As(err, &pe), field)
		assert.Equal(t, field, pe.Field)
	}
}
