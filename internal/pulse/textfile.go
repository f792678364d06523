package pulse

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
)

// TextFormat selects how the two columns of a pulse text file are read.
type TextFormat int

const (
	// AmplitudePhase columns hold magnitude and phase.
	AmplitudePhase TextFormat = iota
	// RealImaginary columns hold the real and imaginary parts.
	RealImaginary
)

// TextOptions controls ReadText.
type TextOptions struct {
	Format TextFormat
	// PhaseInDegrees converts the phase column from degrees. Only used with
	// AmplitudePhase.
	PhaseInDegrees bool
}

// ReadText parses a two-column whitespace-delimited pulse file. Lines that
// are blank or start with '#' or ';' are skipped. A malformed line fails with
// an AlgorithmError naming its 1-based line number.
func ReadText(r io.Reader, opts TextOptions) ([]complex128, error) {
	var samples []complex128
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, pulseerr.Algorithmf("malformed_line", "line %d: expected 2 values, found %d", lineNo, len(fields))
		}
		first, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, pulseerr.Algorithmf("malformed_line", "line %d: %q is not a number", lineNo, fields[0])
		}
		second, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, pulseerr.Algorithmf("malformed_line", "line %d: %q is not a number", lineNo, fields[1])
		}

		switch opts.Format {
		case RealImaginary:
			samples = append(samples, complex(first, second))
		default:
			phase := second
			if opts.PhaseInDegrees {
				phase *= math.Pi / 180
			}
			samples = append(samples, cmplx.Rect(first, phase))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pulse text: %w", err)
	}
	return samples, nil
}

// WriteText writes the waveform as amplitude (µT) and phase (degrees) lines
// preceded by a comment header.
func WriteText(w io.Writer, st *State) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# samples=%d dwell_s=%s\n", st.Len(), strconv.FormatFloat(st.Dwell, 'g', -1, 64))
	fmt.Fprintln(bw, "# amplitude_uT phase_deg")
	for _, v := range st.Waveform {
		amp, ph := cmplx.Polar(v)
		fmt.Fprintf(bw, "%s %s\n",
			strconv.FormatFloat(amp, 'g', -1, 64),
			strconv.FormatFloat(ph*180/math.Pi, 'g', -1, 64))
	}
	return bw.Flush()
}
