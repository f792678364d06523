package pulse

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// None is the explicit marker for an absent legacy series.
const None = "none"

// EncodeSeries encodes float64 samples as base64 of little-endian IEEE-754
// words, the layout the predecessor tool stored. A nil slice encodes as None.
func EncodeSeries(xs []float64) string {
	if xs == nil {
		return None
	}
	buf := make([]byte, 8*len(xs))
	for i, x := range xs {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeSeries reverses EncodeSeries. None decodes to a nil slice; an empty
// payload is an error since absence must be spelled None.
func DecodeSeries(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, None) {
		return nil, nil
	}
	if s == "" {
		return nil, fmt.Errorf("empty series: absent data must be encoded as %q", None)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("decode series: %d bytes is not a whole number of float64 words", len(raw))
	}
	xs := make([]float64, len(raw)/8)
	for i := range xs {
		xs[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return xs, nil
}

// EncodeComplexSeries interleaves real and imaginary parts.
func EncodeComplexSeries(zs []complex128) string {
	if zs == nil {
		return None
	}
	xs := make([]float64, 0, 2*len(zs))
	for _, z := range zs {
		xs = append(xs, real(z), imag(z))
	}
	return EncodeSeries(xs)
}

// DecodeComplexSeries reverses EncodeComplexSeries.
func DecodeComplexSeries(s string) ([]complex128, error) {
	xs, err := DecodeSeries(s)
	if err != nil || xs == nil {
		return nil, err
	}
	if len(xs)%2 != 0 {
		return nil, fmt.Errorf("complex series has an odd number of words (%d)", len(xs))
	}
	zs := make([]complex128, len(xs)/2)
	for i := range zs {
		zs[i] = complex(xs[2*i], xs[2*i+1])
	}
	return zs, nil
}
