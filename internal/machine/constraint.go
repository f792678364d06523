package machine

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
)

// Constraint names one machine limit.
type Constraint string

const (
	DwellMinimum    Constraint = "dwell_minimum"
	DwellIncrement  Constraint = "dwell_increment"
	B1Maximum       Constraint = "b1_maximum"
	GradientMaximum Constraint = "gradient_maximum"
	GradientSlew    Constraint = "gradient_slew"
)

// Policy is what a kernel declares should happen when a limit is exceeded.
type Policy int

const (
	// Ignore skips the check. It is the policy of every undeclared constraint.
	Ignore Policy = iota
	// Warn reports the violation and leaves the data unchanged.
	Warn
	// Clip brings the data within the limit and reports what changed.
	Clip
	// Fatal stops the stage with a ConstraintViolation.
	Fatal
)

func (p Policy) String() string {
	switch p {
	case Warn:
		return "warn"
	case Clip:
		return "clip"
	case Fatal:
		return "fatal"
	default:
		return "ignore"
	}
}

// Policies maps each constraint to the policy a kernel declared for it.
type Policies map[Constraint]Policy

// For returns the declared policy, Ignore when absent.
func (p Policies) For(c Constraint) Policy {
	if p == nil {
		return Ignore
	}
	return p[c]
}

const snapTolerance = 1e-6

// CheckDwell validates a dwell time in seconds against the machine's minimum and
// increment. It returns the dwell to use and any warnings.
func CheckDwell(dwell float64, spec *Spec, p Policies) (float64, []string, error) {
	var warnings []string
	if spec == nil {
		return dwell, nil, nil
	}
	minDwell := spec.MinDwellTime * 1e-6
	inc := spec.DwellTimeIncrement * 1e-6

	if policy := p.For(DwellMinimum); policy != Ignore && minDwell > 0 && dwell < minDwell*(1-1e-9) {
		switch policy {
		case Fatal:
			return 0, nil, &pulseerr.ConstraintViolation{
				Constraint: string(DwellMinimum),
				Message:    "dwell time is below the machine minimum",
				Limit:      spec.MinDwellTime,
				Value:      dwell * 1e6,
			}
		case Clip:
			warnings = append(warnings, fmt.Sprintf("dwell time %gus raised to machine minimum %gus", dwell*1e6, spec.MinDwellTime))
			dwell = minDwell
		case Warn:
			warnings = append(warnings, fmt.Sprintf("dwell time %gus is below machine minimum %gus", dwell*1e6, spec.MinDwellTime))
		}
	}

	if policy := p.For(DwellIncrement); policy != Ignore && inc > 0 {
		k := dwell / inc
		if math.Abs(k-math.Round(k)) > snapTolerance {
			switch policy {
			case Fatal:
				return 0, nil, &pulseerr.ConstraintViolation{
					Constraint: string(DwellIncrement),
					Message:    "dwell time is not a multiple of the machine increment",
					Limit:      spec.DwellTimeIncrement,
					Value:      dwell * 1e6,
				}
			case Clip:
				steps := math.Max(math.Round(k), 1)
				if minDwell > 0 && steps*inc < minDwell*(1-1e-9) && p.For(DwellMinimum) != Ignore {
					steps = math.Ceil(minDwell / inc)
				}
				snapped := steps * inc
				warnings = append(warnings, fmt.Sprintf("dwell time %gus rounded to %gus (increment %gus)", dwell*1e6, snapped*1e6, spec.DwellTimeIncrement))
				dwell = snapped
			case Warn:
				warnings = append(warnings, fmt.Sprintf("dwell time %gus is not a multiple of %gus", dwell*1e6, spec.DwellTimeIncrement))
			}
		}
	}
	return dwell, warnings, nil
}

// CheckB1 validates the peak waveform amplitude. Clipping limits each
// sample's magnitude and keeps its phase; it modifies st in place.
func CheckB1(st *pulse.State, spec *Spec, p Policies) ([]string, error) {
	policy := p.For(B1Maximum)
	if policy == Ignore || spec == nil || spec.MaxB1Field <= 0 || st == nil {
		return nil, nil
	}
	peak := st.PeakAmplitude()
	if peak <= spec.MaxB1Field*(1+1e-12) {
		return nil, nil
	}
	switch policy {
	case Fatal:
		return nil, &pulseerr.ConstraintViolation{
			Constraint: string(B1Maximum),
			Message:    "peak B1 exceeds the machine maximum",
			Limit:      spec.MaxB1Field,
			Value:      peak,
		}
	case Clip:
		clipped := 0
		for i, v := range st.Waveform {
			if cmplx.Abs(v) > spec.MaxB1Field {
				st.Waveform[i] = cmplx.Rect(spec.MaxB1Field, cmplx.Phase(v))
				clipped++
			}
		}
		return []string{fmt.Sprintf("clipped %d samples from peak %.4guT to machine maximum %guT", clipped, peak, spec.MaxB1Field)}, nil
	default:
		return []string{fmt.Sprintf("peak B1 %.4guT exceeds machine maximum %guT", peak, spec.MaxB1Field)}, nil
	}
}

// CheckGradient validates gradient amplitude and slew rate when a gradient
// channel is present. Clipping modifies st in place.
func CheckGradient(st *pulse.State, spec *Spec, p Policies) ([]string, error) {
	if st == nil || !st.HasGradient() || spec == nil {
		return nil, nil
	}
	var warnings []string

	if policy := p.For(GradientMaximum); policy != Ignore && spec.GradientMaximum > 0 {
		peak := 0.0
		for _, g := range st.Gradient {
			peak = math.Max(peak, math.Abs(g))
		}
		if peak > spec.GradientMaximum*(1+1e-12) {
			switch policy {
			case Fatal:
				return nil, &pulseerr.ConstraintViolation{
					Constraint: string(GradientMaximum),
					Message:    "gradient amplitude exceeds the machine maximum",
					Limit:      spec.GradientMaximum,
					Value:      peak,
				}
			case Clip:
				for i, g := range st.Gradient {
					st.Gradient[i] = math.Copysign(math.Min(math.Abs(g), spec.GradientMaximum), g)
				}
				warnings = append(warnings, fmt.Sprintf("gradient clipped from %.4g to %g mT/m", peak, spec.GradientMaximum))
			case Warn:
				warnings = append(warnings, fmt.Sprintf("gradient %.4g mT/m exceeds machine maximum %g mT/m", peak, spec.GradientMaximum))
			}
		}
	}

	if policy := p.For(GradientSlew); policy != Ignore && spec.GradientSlewRate > 0 {
		worst := maxSlew(st.Gradient, st.GradientTime)
		if worst > spec.GradientSlewRate*(1+1e-12) {
			switch policy {
			case Fatal:
				return nil, &pulseerr.ConstraintViolation{
					Constraint: string(GradientSlew),
					Message:    "gradient slew rate exceeds the machine maximum",
					Limit:      spec.GradientSlewRate,
					Value:      worst,
				}
			case Clip:
				limitSlew(st.Gradient, st.GradientTime, spec.GradientSlewRate)
				warnings = append(warnings, fmt.Sprintf("gradient slew limited from %.4g to %g mT/m/ms", worst, spec.GradientSlewRate))
			case Warn:
				warnings = append(warnings, fmt.Sprintf("gradient slew %.4g mT/m/ms exceeds machine maximum %g", worst, spec.GradientSlewRate))
			}
		}
	}
	return warnings, nil
}

// maxSlew returns the steepest step of g in mT/m/ms; axis is in seconds.
func maxSlew(g, axis []float64) float64 {
	worst := 0.0
	for i := 1; i < len(g); i++ {
		dtMs := (axis[i] - axis[i-1]) * 1e3
		worst = math.Max(worst, math.Abs(g[i]-g[i-1])/dtMs)
	}
	return worst
}

func limitSlew(g, axis []float64, slew float64) {
	for i := 1; i < len(g); i++ {
		step := slew * (axis[i] - axis[i-1]) * 1e3
		d := g[i] - g[i-1]
		if math.Abs(d) > step {
			g[i] = g[i-1] + math.Copysign(step, d)
		}
	}
}
