// Package machine describes the scanner a design targets, the design-wide
// calculation settings, and the physical constants handed to every kernel.
package machine

import (
	"fmt"
	"math"
	"strings"
)

// Constants are passed explicitly to every kernel.
type Constants struct {
	// GammaHzPerMicroTesla is the proton gyromagnetic ratio γ/2π.
	GammaHzPerMicroTesla float64
	// DegToRad converts degrees to radians.
	DegToRad float64
}

// DefaultConstants returns proton constants.
func DefaultConstants() Constants {
	return Constants{
		GammaHzPerMicroTesla: 42.577478,
		DegToRad:             math.Pi / 180,
	}
}

// RadPerSecond converts a B1 amplitude in µT to a nutation rate in rad/s.
func (c Constants) RadPerSecond(b1 float64) float64 {
	return 2 * math.Pi * c.GammaHzPerMicroTesla * b1
}

// MicroTesla converts a nutation rate in rad/s to a B1 amplitude in µT.
func (c Constants) MicroTesla(radPerSecond float64) float64 {
	return radPerSecond / (2 * math.Pi * c.GammaHzPerMicroTesla)
}

// Rotations converts B1 samples in µT to rotations in radians per sample of
// dwell seconds. Magnitude is the flip and phase the axis.
func (c Constants) Rotations(b1 []complex128, dwell float64) []complex128 {
	scale := complex(c.RadPerSecond(1)*dwell, 0)
	out := make([]complex128, len(b1))
	for i, v := range b1 {
		out[i] = v * scale
	}
	return out
}

// FromRotations is the inverse of Rotations.
func (c Constants) FromRotations(rf []complex128, dwell float64) []complex128 {
	scale := complex(c.MicroTesla(1/dwell), 0)
	out := make([]complex128, len(rf))
	for i, v := range rf {
		out[i] = v * scale
	}
	return out
}

// Spec is a scanner description. Designs reference a Spec by name and never
// modify it, so one value is safely shared across concurrent builds.
type Spec struct {
	Name string
	// MaxB1Field is the peak B1 amplitude in µT.
	MaxB1Field float64
	// FieldStrength is B0 in tesla.
	FieldStrength float64
	// MinDwellTime and DwellTimeIncrement are in µs.
	MinDwellTime       float64
	DwellTimeIncrement float64
	// GradientRasterTime is in µs.
	GradientRasterTime float64
	// GradientSlewRate is in mT/m/ms.
	GradientSlewRate float64
	// GradientMaximum is in mT/m.
	GradientMaximum float64
	// ZeroPadding is the oversampling factor used by spectral computations.
	ZeroPadding int
}

// Default returns a conservative 3 T body-coil description.
func Default() *Spec {
	return &Spec{
		Name:               "default",
		MaxB1Field:         25,
		FieldStrength:      3,
		MinDwellTime:       1,
		DwellTimeIncrement: 0,
		GradientRasterTime: 10,
		GradientSlewRate:   200,
		GradientMaximum:    40,
		ZeroPadding:        16,
	}
}

// Validate checks that limits are usable.
func (s *Spec) Validate() error {
	if s.MaxB1Field < 0 || s.MinDwellTime < 0 || s.DwellTimeIncrement < 0 ||
		s.GradientRasterTime < 0 || s.GradientSlewRate < 0 || s.GradientMaximum < 0 {
		return fmt.Errorf("machine %q: limits must not be negative", s.Name)
	}
	if s.FieldStrength < 0 {
		return fmt.Errorf("machine %q: field strength must not be negative", s.Name)
	}
	if s.ZeroPadding < 0 {
		return fmt.Errorf("machine %q: zero padding must not be negative", s.Name)
	}
	return nil
}

// Oversampling returns the spectral padding factor, 16 when unset.
func (s *Spec) Oversampling() int {
	if s == nil || s.ZeroPadding <= 0 {
		return 16
	}
	return s.ZeroPadding
}

// BandwidthType selects how a profile's bandwidth is measured.
type BandwidthType int

const (
	// HalfHeight measures the full width at half of the peak.
	HalfHeight BandwidthType = iota
	// Minimum measures the width of the region inside the passband ripple.
	Minimum
	// Maximum measures the width of the region above the stopband ripple.
	Maximum
)

var bandwidthNames = []string{"half_height", "minimum", "maximum"}

// ParseBandwidthType is the validated constructor for BandwidthType.
func ParseBandwidthType(s string) (BandwidthType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return HalfHeight, nil
	}
	for i, name := range bandwidthNames {
		if s == name {
			return BandwidthType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown bandwidth type %q: expected one of %s", s, strings.Join(bandwidthNames, ", "))
}

func (b BandwidthType) String() string {
	if int(b) >= 0 && int(b) < len(bandwidthNames) {
		return bandwidthNames[b]
	}
	return fmt.Sprintf("BandwidthType(%d)", int(b))
}

// Settings are the design-wide calculation settings.
type Settings struct {
	// CalcResolution is the number of frequency points a profile is
	// evaluated at.
	CalcResolution int
	BandwidthType  BandwidthType
}

// DefaultSettings returns the settings used when a design omits them.
func DefaultSettings() Settings {
	return Settings{CalcResolution: 5000, BandwidthType: HalfHeight}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.CalcResolution < 16 {
		return fmt.Errorf("calc resolution must be at least 16, got %d", s.CalcResolution)
	}
	return nil
}
