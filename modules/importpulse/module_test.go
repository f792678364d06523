package importpulse

import (
	"context"
	"errors"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) (dir, name string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pulse.txt"), []byte(body), 0o644))
	return dir, "pulse.txt"
}

func run(t *testing.T, dir string, in *Input) (*kernel.Result, error) {
	t.Helper()
	return Run(context.Background(), &kernel.Request{Input: in, Dir: dir})
}

func TestImport_ScalesToMaxIntensity(t *testing.T) {
	dir, name := write(t, "# amplitude phase\n1 0\n; comment\n\n4 90\n2 180\n")
	res, err := run(t, dir, &Input{File: name, MaxIntensity: 12, DwellTime: 5})
	require.NoError(t, err)

	st := res.State
	require.Equal(t, 3, st.Len())
	assert.InDelta(t, 12, st.PeakAmplitude(), 1e-12)
	assert.InDelta(t, 5e-6, st.Dwell, 1e-18)
	assert.InDelta(t, 0, cmplx.Abs(st.Waveform[1]-complex(0, 12)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(st.Waveform[2]+6), 1e-12)
	require.NoError(t, st.Validate())

	points, _ := res.Outputs["points"].AsBigFloat().Int64()
	assert.Equal(t, int64(3), points)
	peak, _ := res.Outputs["peak_input"].AsBigFloat().Float64()
	assert.Equal(t, 4.0, peak)
}

func TestImport_DegreesAndRadiansAgree(t *testing.T) {
	degDir, name := write(t, "1 0\n1 45\n1 -120\n")
	radDir, _ := write(t, "1 0\n1 0.7853981633974483\n1 -2.0943951023931953\n")

	deg, err := run(t, degDir, &Input{File: name, PhaseUnits: 0, MaxIntensity: 1, DwellTime: 10})
	require.NoError(t, err)
	rad, err := run(t, radDir, &Input{File: name, PhaseUnits: 1, MaxIntensity: 1, DwellTime: 10})
	require.NoError(t, err)

	for i := range deg.State.Waveform {
		assert.InDelta(t, 0, cmplx.Abs(deg.State.Waveform[i]-rad.State.Waveform[i]), 1e-12)
	}
}

func TestImport_TwoLinesIsTooFew(t *testing.T) {
	dir, name := write(t, "1 0\n2 0\n")
	_, err := run(t, dir, &Input{File: name, MaxIntensity: 1, DwellTime: 10})

	var ae *pulseerr.AlgorithmError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "too_few_points", ae.Code)
	assert.Contains(t, ae.Message, "fewer than 2 points")
}

func TestImport_MalformedLine(t *testing.T) {
	dir, name := write(t, "1 0\n2 0\n# ok\n3 0 7\n")
	_, err := run(t, dir, &Input{File: name, MaxIntensity: 1, DwellTime: 10})

	var ae *pulseerr.AlgorithmError
	require.True(t, errors.As(err, &ae))
	assert.Contains(t, ae.Message, "line 4")
}

func TestImport_RealImaginary(t *testing.T) {
	dir, name := write(t, "3 4\n0 1\n1 0\n")
	res, err := run(t, dir, &Input{File: name, FileFormat: formatRealImaginary, MaxIntensity: 10, DwellTime: 10})
	require.NoError(t, err)
	assert.InDelta(t, 0, cmplx.Abs(res.State.Waveform[0]-complex(6, 8)), 1e-12)
}

func TestImport_Failures(t *testing.T) {
	dir, name := write(t, "0 0\n0 10\n0 20\n")

	_, err := run(t, dir, &Input{File: name, MaxIntensity: 1, DwellTime: 10})
	var ae *pulseerr.AlgorithmError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "zero_amplitude", ae.Code)

	_, err = run(t, dir, &Input{File: "missing.txt", MaxIntensity: 1, DwellTime: 10})
	var ioErr *pulseerr.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, filepath.Join(dir, "missing.txt"), ioErr.Path)

	_, err = run(t, dir, &Input{MaxIntensity: 1, DwellTime: 10})
	var pe *pulseerr.ParameterError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "file1", pe.Field)

	_, err = run(t, dir, &Input{File: name, MaxIntensity: 0, DwellTime: 10})
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "max_intensity", pe.Field)
}
