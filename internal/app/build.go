package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/session"
	"golang.org/x/sync/errgroup"
)

// BuildResult is the outcome of building one design.
type BuildResult struct {
	Design string
	Status executor.Status
	// Pulse is nil for designs without transforms and for failed builds.
	Pulse  *pulse.State
	Stages []executor.StageInfo
	Err    error
}

// Run builds every loaded design, prints a per-stage summary and, when
// outDir is set, writes each final pulse as an amplitude/phase text file.
// The returned error joins the failures of all designs.
func (a *App) Run(ctx context.Context, outDir string) error {
	ctx = a.ctx(ctx)
	a.logger.Debug("App.Run method started.")

	model, converter := a.snapshot()
	if len(model.Designs) == 0 {
		a.logger.Warn("No designs found, nothing to build.", "path", a.cfg.DesignPath)
		return nil
	}

	a.logger.Info("🚀 Building designs...", "count", len(model.Designs), "workers", a.cfg.WorkerCount)
	results, err := a.buildAll(ctx, model, converter)
	if err != nil {
		return err
	}
	a.health.record(results)
	a.printSummary(a.outW, results)
	a.logger.Info("🏁 Build finished.")

	if outDir != "" {
		if err := writePulses(outDir, results); err != nil {
			return err
		}
	}
	return joinFailures(results)
}

func (a *App) snapshot() (*config.Model, config.Converter) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model, a.converter
}

// buildAll builds every design of model concurrently, bounded by the worker
// count. Design failures are reported in the results; the error is only set
// when the build itself could not run.
func (a *App) buildAll(ctx context.Context, model *config.Model, converter config.Converter) ([]BuildResult, error) {
	execs := make([]executor.Executor, len(model.Designs))
	setup := make([]error, len(model.Designs))
	for i, design := range model.Designs {
		execs[i], setup[i] = a.newExecutor(ctx, model, converter, design)
	}
	results, err := a.buildExecutors(ctx, execs)
	if err != nil {
		return nil, err
	}
	for i, design := range model.Designs {
		if setup[i] != nil {
			results[i] = BuildResult{Design: design.Name, Status: executor.Status{Phase: executor.Error}, Err: setup[i]}
		}
	}
	return results, nil
}

// buildExecutors runs every non-nil executor with at most WorkerCount
// builds in flight.
func (a *App) buildExecutors(ctx context.Context, execs []executor.Executor) ([]BuildResult, error) {
	results := make([]BuildResult, len(execs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.WorkerCount)
	for i, exec := range execs {
		if exec == nil {
			continue
		}
		g.Go(func() error {
			results[i] = a.execute(gctx, exec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func (a *App) newExecutor(ctx context.Context, model *config.Model, converter config.Converter, design *config.Design) (executor.Executor, error) {
	spec, err := model.Machine(design.MachineName)
	if err != nil {
		return nil, fmt.Errorf("design %q: %w", design.Name, err)
	}
	return a.newExecutorFor(ctx, converter, design, spec)
}

func (a *App) newExecutorFor(ctx context.Context, converter config.Converter, design *config.Design, spec *machine.Spec) (executor.Executor, error) {
	sess, err := a.sessions.NewSession(ctx, design, a.registry, session.Options{
		Machine:   spec,
		Constants: machine.DefaultConstants(),
		Converter: converter,
		Clock:     a.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("design %q: %w", design.Name, err)
	}
	return sess.GetExecutor()
}

// execute brings exec up to date and snapshots its stages.
func (a *App) execute(ctx context.Context, exec executor.Executor) BuildResult {
	design := exec.Design()
	logger := ctxlog.FromContext(ctx).With("design", design.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	st, err := exec.Execute(ctx)
	res := BuildResult{Design: design.Name, Status: exec.Status(), Pulse: st, Err: err}
	if err != nil {
		logger.Error("Design build failed.", "status", res.Status.String(), "error", err)
	} else {
		logger.Info("✅ Design built.", "stages", len(design.Transforms))
	}

	stages, serr := exec.Stages(ctx)
	if serr != nil {
		res.Err = errors.Join(res.Err, serr)
	}
	res.Stages = stages
	return res
}

// printSummary writes one line per design and one per stage.
func (a *App) printSummary(w io.Writer, results []BuildResult) {
	for _, r := range results {
		fmt.Fprintf(w, "design %s: %s\n", r.Design, r.Status)
		for _, s := range r.Stages {
			line := fmt.Sprintf("  [%d] %-12s %-8s", s.Address.Progression, s.Kernel, s.Status)
			if s.Record != nil {
				if st := s.Record.State; st != nil {
					line += fmt.Sprintf(" samples=%d peak_uT=%.4g", st.Len(), st.PeakAmplitude())
				}
				line += fmt.Sprintf(" elapsed=%s", s.Record.Elapsed)
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
			if s.Record != nil {
				for _, warn := range s.Record.Warnings {
					fmt.Fprintf(w, "      warning: %s\n", warn)
				}
			}
			if s.Err != nil {
				fmt.Fprintf(w, "      error: %v\n", s.Err)
			}
		}
		if r.Err != nil && len(r.Stages) == 0 {
			fmt.Fprintf(w, "  error: %v\n", r.Err)
		}
	}
}

// writePulses writes <outDir>/<design>.txt for every built design that
// produced a pulse.
func writePulses(outDir string, results []BuildResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return &pulseerr.IOError{Path: outDir, Err: err}
	}
	for _, r := range results {
		if r.Pulse == nil {
			continue
		}
		if err := writePulse(filepath.Join(outDir, fileName(r.Design)+".txt"), r.Pulse); err != nil {
			return err
		}
	}
	return nil
}

func writePulse(path string, st *pulse.State) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &pulseerr.IOError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &pulseerr.IOError{Path: path, Err: cerr}
		}
	}()
	return pulse.WriteText(f, st)
}

func fileName(design string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, design)
}

func joinFailures(results []BuildResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("design %q: %w", r.Design, r.Err))
		}
	}
	return errors.Join(errs...)
}
