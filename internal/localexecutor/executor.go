// Package localexecutor provides a concrete, in-process implementation of the
// executor.Executor interface.
package localexecutor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/registry"
	"github.com/specialistvlad/pulsegrid/internal/stage"
	"github.com/specialistvlad/pulsegrid/internal/stagestore"
)

// Options carries the collaborators shared by every pipeline.
type Options struct {
	// Machine is shared read-only between designs.
	Machine   *machine.Spec
	Constants machine.Constants
	Converter config.Converter
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Pipeline implements executor.Executor for one design.
type Pipeline struct {
	mu     sync.Mutex
	design *config.Design
	reg    *registry.Registry
	store  stagestore.Store
	opts   Options

	// statusMu guards status separately so it can be read while a build
	// holds mu.
	statusMu sync.RWMutex
	status   executor.Status
}

var _ executor.Executor = (*Pipeline)(nil)

// New creates a pipeline over a private copy of design.
func New(design *config.Design, reg *registry.Registry, store stagestore.Store, opts Options) (*Pipeline, error) {
	if err := design.Validate(); err != nil {
		return nil, err
	}
	if opts.Machine == nil {
		opts.Machine = machine.Default()
	}
	if opts.Constants.GammaHzPerMicroTesla == 0 {
		opts.Constants = machine.DefaultConstants()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Converter == nil {
		return nil, fmt.Errorf("pipeline for design %q needs a converter", design.Name)
	}
	return &Pipeline{
		design: design.Clone(),
		reg:    reg,
		store:  store,
		opts:   opts,
	}, nil
}

// Design returns a copy of the current design.
func (p *Pipeline) Design() *config.Design {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.design.Clone()
}

// Status returns the pipeline-level build state. It does not wait for a
// running build.
func (p *Pipeline) Status() executor.Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

func (p *Pipeline) setStatus(s executor.Status) {
	p.statusMu.Lock()
	p.status = s
	p.statusMu.Unlock()
}

// Stages returns a snapshot of every stage. Records are copies.
func (p *Pipeline) Stages(ctx context.Context) ([]executor.StageInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]executor.StageInfo, 0, len(p.design.Transforms))
	for i, t := range p.design.Transforms {
		addr := p.addr(i)
		status, err := p.store.GetStatus(ctx, addr)
		if err != nil {
			return nil, err
		}
		rec, err := p.store.GetResult(ctx, addr)
		if err != nil {
			return nil, err
		}
		stageErr, err := p.store.GetError(ctx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, executor.StageInfo{Address: addr, Kernel: t.Kernel, Status: status, Record: rec.Clone(), Err: stageErr})
	}
	return out, nil
}

// Execute brings every stage up to date. Stages whose cached fingerprint
// still matches are reused; the first mismatch and everything after it run.
func (p *Pipeline) Execute(ctx context.Context) (*pulse.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.execute(ctx)
}

// Rebuild discards all cached results and runs from stage 0.
func (p *Pipeline) Rebuild(ctx context.Context) (*pulse.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.invalidate(ctx, 0, len(p.design.Transforms)); err != nil {
		return nil, err
	}
	return p.execute(ctx)
}

func (p *Pipeline) execute(ctx context.Context) (*pulse.State, error) {
	logger := ctxlog.FromContext(ctx).With("design", p.design.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	if len(p.design.Transforms) == 0 {
		logger.Info("Design has no transforms, nothing to build.")
		p.setStatus(executor.Status{Phase: executor.Built})
		return nil, nil
	}

	var prior *pulse.State
	upstream := ""
	reused := 0
	for i := range p.design.Transforms {
		p.setStatus(executor.Status{Phase: executor.Building, Stage: i})

		pl, err := p.plan(ctx, i, upstream)
		if err != nil {
			return nil, p.fail(ctx, i, err)
		}

		cached, err := p.store.GetResult(ctx, pl.addr)
		if err != nil {
			return nil, p.fail(ctx, i, err)
		}
		status, err := p.store.GetStatus(ctx, pl.addr)
		if err != nil {
			return nil, p.fail(ctx, i, err)
		}
		if cached != nil && status == stage.Done && cached.Fingerprint == pl.fingerprint {
			logger.Debug("Reusing cached stage.", "stage", i, "kernel", pl.def.Name)
			prior = cached.State
			upstream = cached.Fingerprint
			reused++
			continue
		}

		rec, err := p.runStage(ctx, pl, prior)
		if err != nil {
			return nil, p.fail(ctx, i, err)
		}
		prior = rec.State
		upstream = rec.Fingerprint
	}

	p.setStatus(executor.Status{Phase: executor.Built})
	logger.Info("🏁 Design built.", "stages", len(p.design.Transforms), "reused", reused)
	return prior.Clone(), nil
}

// fail records the failure at stage i, marks every later stage stale and
// returns the wrapped error. Earlier stages are left untouched.
func (p *Pipeline) fail(ctx context.Context, i int, cause error) error {
	t := p.design.Transforms[i]
	kernelID := t.KernelID
	if def, ok := p.reg.Definition(t.Kernel); ok {
		kernelID = def.ID
	}
	stageErr := executor.NewStageError(i, kernelID, t.Kernel, cause)

	logger := ctxlog.FromContext(ctx)
	record := func(j int, err error) {
		if err != nil {
			logger.Error("Failed to record stage state after a failure.", "stage", j, "error", err)
		}
	}

	addr := p.addr(i)
	record(i, p.store.Clear(ctx, addr))
	record(i, p.store.SetStatus(ctx, addr, stage.Failed))
	record(i, p.store.SetError(ctx, addr, stageErr))
	for j := i + 1; j < len(p.design.Transforms); j++ {
		record(j, p.store.Clear(ctx, p.addr(j)))
		record(j, p.store.SetStatus(ctx, p.addr(j), stage.Stale))
	}

	p.setStatus(executor.Status{Phase: executor.Error, Stage: i})
	logger.Error("❌ Stage failed.", "stage", i, "kernel", t.Kernel, "error", cause)
	return stageErr
}

// invalidate clears stages [from, end) and marks those that still exist as
// stale. end may exceed the current length after a removal.
func (p *Pipeline) invalidate(ctx context.Context, from, end int) error {
	for j := from; j < end; j++ {
		if err := p.store.Clear(ctx, p.addr(j)); err != nil {
			return err
		}
		if j < len(p.design.Transforms) {
			if err := p.store.SetStatus(ctx, p.addr(j), stage.Stale); err != nil {
				return err
			}
		}
	}
	p.setStatus(executor.Status{Phase: executor.Unbuilt})
	return nil
}

func (p *Pipeline) addr(i int) stage.Address {
	return stage.Address{Design: p.design.ID, Progression: i}
}
