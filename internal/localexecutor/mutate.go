package localexecutor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/zclconf/go-cty/cty"
)

// SetParameters replaces the raw parameters of stage k and invalidates
// stages k and later.
func (p *Pipeline) SetParameters(ctx context.Context, k int, raw map[string]cty.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkIndex(k); err != nil {
		return err
	}
	p.design.Transforms[k].Raw = copyRaw(raw)
	ctxlog.FromContext(ctx).Debug("Stage parameters replaced.", "design", p.design.Name, "stage", k)
	return p.invalidate(ctx, k, len(p.design.Transforms))
}

// SetKernel swaps the kernel of stage k. The previous kernel id pin no
// longer applies.
func (p *Pipeline) SetKernel(ctx context.Context, k int, kernel string, raw map[string]cty.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkIndex(k); err != nil {
		return err
	}
	if _, _, err := p.reg.Lookup(kernel); err != nil {
		return err
	}
	p.design.Transforms[k] = &config.Transform{Progression: k, Kernel: kernel, Raw: copyRaw(raw)}
	ctxlog.FromContext(ctx).Debug("Stage kernel replaced.", "design", p.design.Name, "stage", k, "kernel", kernel)
	return p.invalidate(ctx, k, len(p.design.Transforms))
}

// Append adds a stage at the end of the chain. Only the new stage is
// invalidated.
func (p *Pipeline) Append(ctx context.Context, kernel string, raw map[string]cty.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, _, err := p.reg.Lookup(kernel); err != nil {
		return err
	}
	k := len(p.design.Transforms)
	p.design.Transforms = append(p.design.Transforms, &config.Transform{Progression: k, Kernel: kernel, Raw: copyRaw(raw)})
	return p.invalidate(ctx, k, k+1)
}

// Remove deletes stage k. Stages from k on are renumbered and invalidated.
func (p *Pipeline) Remove(ctx context.Context, k int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkIndex(k); err != nil {
		return err
	}
	oldLen := len(p.design.Transforms)
	p.design.Transforms = append(p.design.Transforms[:k], p.design.Transforms[k+1:]...)
	p.design.Renumber()
	return p.invalidate(ctx, k, oldLen)
}

// Move relocates stage from to index to. Everything from the smaller index
// on is invalidated.
func (p *Pipeline) Move(ctx context.Context, from, to int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkIndex(from); err != nil {
		return err
	}
	if err := p.checkIndex(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	t := p.design.Transforms[from]
	rest := append(p.design.Transforms[:from:from], p.design.Transforms[from+1:]...)
	p.design.Transforms = append(rest[:to:to], append([]*config.Transform{t}, rest[to:]...)...)
	p.design.Renumber()
	return p.invalidate(ctx, min(from, to), len(p.design.Transforms))
}

// Reload replaces the design. Stage results stay cached; Execute compares
// fingerprints and reruns from the first stage that changed. Stages beyond
// the new length are dropped.
func (p *Pipeline) Reload(ctx context.Context, design *config.Design) error {
	if err := design.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if design.ID != p.design.ID {
		return fmt.Errorf("cannot reload design %q into pipeline for %q", design.ID, p.design.ID)
	}
	oldLen := len(p.design.Transforms)
	p.design = design.Clone()
	for j := len(p.design.Transforms); j < oldLen; j++ {
		if err := p.store.Clear(ctx, p.addr(j)); err != nil {
			return err
		}
	}
	p.setStatus(executor.Status{Phase: executor.Unbuilt})
	return nil
}

func (p *Pipeline) checkIndex(k int) error {
	if k < 0 || k >= len(p.design.Transforms) {
		return fmt.Errorf("design %q has no stage %d", p.design.Name, k)
	}
	return nil
}

func copyRaw(raw map[string]cty.Value) map[string]cty.Value {
	out := make(map[string]cty.Value, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
