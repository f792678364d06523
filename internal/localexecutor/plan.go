package localexecutor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/registry"
	"github.com/specialistvlad/pulsegrid/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// plan is a stage resolved far enough to know whether it must run.
type plan struct {
	index       int
	addr        stage.Address
	def         *config.KernelDefinition
	kernel      *registry.RegisteredKernel
	values      *param.Values
	fingerprint string
	// dwellChecked is set when the dwell could be derived from parameters
	// and was checked before the kernel ran.
	dwellChecked bool
	warnings     []string
}

// plan resolves stage i: kernel lookup, parameter resolution, the dwell
// pre-check and the fingerprint.
func (p *Pipeline) plan(ctx context.Context, i int, upstream string) (*plan, error) {
	t := p.design.Transforms[i]
	def, k, err := p.reg.Lookup(t.Kernel)
	if err != nil {
		return nil, err
	}
	if t.KernelID != "" && t.KernelID != def.ID {
		return nil, fmt.Errorf("transform pins kernel id %s but %q has id %s", t.KernelID, def.Name, def.ID)
	}

	values, err := param.Resolve(def.Descriptors(), t.Raw)
	if err != nil {
		return nil, err
	}

	pl := &plan{index: i, addr: p.addr(i), def: def, kernel: k, values: values}
	if err := p.checkDwellParams(pl); err != nil {
		return nil, err
	}

	pl.fingerprint, err = p.fingerprint(pl, upstream)
	if err != nil {
		return nil, err
	}
	return pl, nil
}

// checkDwellParams applies the dwell constraints before the kernel runs
// when the dwell follows from the parameters: dwell_time in µs, or
// duration in ms over time_steps. Clipping rewrites the parameter.
func (p *Pipeline) checkDwellParams(pl *plan) error {
	policies := pl.kernel.Constraints
	if policies.For(machine.DwellMinimum) == machine.Ignore && policies.For(machine.DwellIncrement) == machine.Ignore {
		return nil
	}

	if dwellUs, ok := pl.values.Float("dwell_time"); ok {
		if dwellUs <= 0 {
			return pulseerr.Parameterf("dwell_time", "must be positive, got %g", dwellUs)
		}
		adjusted, warnings, err := machine.CheckDwell(dwellUs*1e-6, p.opts.Machine, policies)
		if err != nil {
			return err
		}
		pl.dwellChecked = true
		pl.warnings = append(pl.warnings, warnings...)
		if len(warnings) > 0 && adjusted != dwellUs*1e-6 {
			return pl.values.Override("dwell_time", cty.NumberFloatVal(adjusted*1e6))
		}
		return nil
	}

	durationMs, hasDuration := pl.values.Float(config.FieldDuration)
	steps, hasSteps := pl.values.Int(config.FieldTimeSteps)
	if !hasDuration || !hasSteps {
		return nil
	}
	if steps <= 0 {
		return pulseerr.Parameterf(config.FieldTimeSteps, "must be positive, got %d", steps)
	}
	if durationMs <= 0 {
		return pulseerr.Parameterf(config.FieldDuration, "must be positive, got %g", durationMs)
	}
	dwell := durationMs * 1e-3 / float64(steps)
	adjusted, warnings, err := machine.CheckDwell(dwell, p.opts.Machine, policies)
	if err != nil {
		return err
	}
	pl.dwellChecked = true
	pl.warnings = append(pl.warnings, warnings...)
	if len(warnings) > 0 && adjusted != dwell {
		return pl.values.Override(config.FieldDuration, cty.NumberFloatVal(adjusted*float64(steps)*1e3))
	}
	return nil
}

// fingerprint hashes everything a stage result depends on.
func (p *Pipeline) fingerprint(pl *plan, upstream string) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "upstream=%s\n", upstream)
	fmt.Fprintf(h, "kernel=%s@%d/%s\n", pl.def.ID, pl.def.Version, pl.def.Algorithm)
	fmt.Fprintf(h, "params=%s\n", pl.values.Canonical())
	fmt.Fprintf(h, "machine=%+v\n", *p.opts.Machine)
	fmt.Fprintf(h, "settings=%d/%s\n", p.design.Settings.CalcResolution, p.design.Settings.BandwidthType)

	for _, name := range pl.values.Names() {
		d, _ := pl.values.Descriptor(name)
		if d.Type != param.FileRef {
			continue
		}
		ref, _ := pl.values.Text(name)
		if ref == "" {
			continue
		}
		sum, err := hashFile(p.resolvePath(ref))
		if err != nil {
			// The kernel reports the unreadable file when it runs.
			sum = "unreadable"
		}
		fmt.Fprintf(h, "file %s=%s\n", name, sum)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// resolvePath makes a file reference absolute against the design directory.
func (p *Pipeline) resolvePath(ref string) string {
	if filepath.IsAbs(ref) || p.design.Dir == "" {
		return ref
	}
	return filepath.Join(p.design.Dir, ref)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// errNoState is returned when a kernel succeeds without producing a pulse.
var errNoState = errors.New("kernel returned no pulse")
