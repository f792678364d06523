// Package importpulse provides the kernel that starts a design from an
// external pulse file.
package importpulse

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Choice ordinals of file_format and phase_units.
const (
	formatAmplitudePhase = 0
	formatRealImaginary  = 1
	unitsDegrees         = 0
)

// Input defines the arguments for the import kernel.
type Input struct {
	File         string  `pulse:"file1"`
	FileFormat   int     `pulse:"file_format"`
	PhaseUnits   int     `pulse:"phase_units"`
	MaxIntensity float64 `pulse:"max_intensity"`
	DwellTime    float64 `pulse:"dwell_time"`
}

// Run reads the file named by file1 and scales it so its peak magnitude
// equals max_intensity.
func Run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	in := req.Input.(*Input)
	if in.File == "" {
		return nil, pulseerr.Parameterf("file1", "no pulse file given")
	}
	if in.MaxIntensity <= 0 {
		return nil, pulseerr.Parameterf("max_intensity", "must be positive, got %g", in.MaxIntensity)
	}
	if in.DwellTime <= 0 {
		return nil, pulseerr.Parameterf("dwell_time", "must be positive, got %g", in.DwellTime)
	}

	opts := pulse.TextOptions{PhaseInDegrees: in.PhaseUnits == unitsDegrees}
	switch in.FileFormat {
	case formatAmplitudePhase:
		opts.Format = pulse.AmplitudePhase
	case formatRealImaginary:
		opts.Format = pulse.RealImaginary
	default:
		return nil, pulseerr.Parameterf("file_format", "unknown format %d", in.FileFormat)
	}

	path := req.Path(in.File)
	samples, err := readFile(path, opts)
	if err != nil {
		return nil, err
	}
	if len(samples) < 3 {
		return nil, pulseerr.Algorithmf("too_few_points", "%s: fewer than 2 points after the first sample (found %d)", in.File, len(samples))
	}

	st := pulse.NewState(samples, in.DwellTime*1e-6)
	peak := st.PeakAmplitude()
	if peak == 0 {
		return nil, pulseerr.Algorithmf("zero_amplitude", "%s: every sample has zero amplitude", in.File)
	}
	scale := complex(in.MaxIntensity/peak, 0)
	for i := range st.Waveform {
		st.Waveform[i] *= scale
	}

	ctxlog.FromContext(ctx).Debug("Imported pulse file.", "path", path, "points", len(samples), "peak_input", peak)
	res := kernel.NewResult(st)
	res.SetInt("points", len(samples))
	res.SetFloat("peak_input", peak)
	return res, nil
}

// readFile parses path. The file is closed on every return, including
// parse failures.
func readFile(path string, opts pulse.TextOptions) (samples []complex128, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &pulseerr.IOError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &pulseerr.IOError{Path: path, Err: fmt.Errorf("close: %w", cerr)}
		}
	}()
	return pulse.ReadText(f, opts)
}

// Register registers the kernel with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKernel("import", &registry.RegisteredKernel{
		Kernel:   kernel.Func(Run),
		NewInput: func() any { return new(Input) },
		Constraints: machine.Policies{
			machine.DwellMinimum:   machine.Fatal,
			machine.DwellIncrement: machine.Clip,
			machine.B1Maximum:      machine.Warn,
		},
	})
}
