package localexecutor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/stage"
)

// runStage executes one planned stage against the prior pulse and caches
// the outcome.
func (p *Pipeline) runStage(ctx context.Context, pl *plan, prior *pulse.State) (*stage.Record, error) {
	logger := ctxlog.FromContext(ctx).With("stage", pl.index, "kernel", pl.def.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Starting stage")

	if err := p.store.Clear(ctx, pl.addr); err != nil {
		return nil, err
	}
	if err := p.store.SetStatus(ctx, pl.addr, stage.Running); err != nil {
		return nil, err
	}

	req := &kernel.Request{
		Params:    pl.values,
		Machine:   p.opts.Machine,
		Settings:  p.design.Settings,
		Constants: p.opts.Constants,
		Clock:     p.opts.Clock,
		Dir:       p.design.Dir,
	}
	if prior != nil {
		req.Prior = prior.Clone()
	}
	if pl.kernel.NeedsPrior {
		if err := req.RequirePrior(); err != nil {
			return nil, err
		}
	}

	if pl.kernel.NewInput != nil {
		input := pl.kernel.NewInput()
		if err := p.opts.Converter.DecodeParams(ctx, input, pl.values); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
		req.Input = input
	}
	logger.Debug("Stage input:", "params", executor.FormatValuesForLogs(pl.values.Inputs()))

	started := p.opts.Clock()
	res, err := pl.kernel.Kernel.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil || res.State == nil {
		return nil, pulseerr.Algorithmf("no_pulse", "%v", errNoState)
	}

	warnings := append([]string(nil), pl.warnings...)
	warnings = append(warnings, res.Warnings...)
	checked, err := p.checkResult(pl, res.State)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, checked...)

	if err := res.State.Validate(); err != nil {
		return nil, pulseerr.Algorithmf("invalid_state", "kernel produced an invalid pulse: %v", err)
	}
	for name, v := range res.Outputs {
		if err := pl.values.SetOutput(name, v); err != nil {
			return nil, err
		}
	}

	rec := &stage.Record{
		Fingerprint: pl.fingerprint,
		State:       res.State,
		Params:      pl.values,
		Diagnostics: res.Diagnostics,
		Warnings:    warnings,
		Elapsed:     p.opts.Clock().Sub(started),
	}
	if err := p.store.SetResult(ctx, pl.addr, rec); err != nil {
		return nil, err
	}
	if err := p.store.SetStatus(ctx, pl.addr, stage.Done); err != nil {
		return nil, err
	}

	for _, w := range warnings {
		logger.Warn("Constraint or kernel warning.", "warning", w)
	}
	logger.Info("✅ Finished stage", "samples", res.State.Len(), "peak_b1_ut", res.State.PeakAmplitude())
	return rec, nil
}

// checkResult applies the post-run constraints. A dwell that could not be
// checked up front is checked here, where clipping can only warn.
func (p *Pipeline) checkResult(pl *plan, st *pulse.State) ([]string, error) {
	policies := pl.kernel.Constraints
	var warnings []string

	if !pl.dwellChecked {
		_, w, err := machine.CheckDwell(st.Dwell, p.opts.Machine, downgradeClip(policies))
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w...)
	}

	w, err := machine.CheckB1(st, p.opts.Machine, policies)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, w...)

	w, err = machine.CheckGradient(st, p.opts.Machine, policies)
	if err != nil {
		return nil, err
	}
	return append(warnings, w...), nil
}

// downgradeClip turns Clip into Warn; the dwell of a finished waveform
// cannot be changed without resampling it.
func downgradeClip(p machine.Policies) machine.Policies {
	out := make(machine.Policies, len(p))
	for c, policy := range p {
		if policy == machine.Clip {
			policy = machine.Warn
		}
		out[c] = policy
	}
	return out
}
