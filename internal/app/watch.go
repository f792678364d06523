package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/specialistvlad/pulsegrid/internal/machine"
)

// watchDebounce collapses the burst of events an editor save produces.
var watchDebounce = 200 * time.Millisecond

// watched is a live pipeline and the machine it was created for.
type watched struct {
	exec executor.Executor
	spec *machine.Spec
}

// Watch builds every design and then rebuilds whenever a file under the
// design or kernel paths changes, until ctx is cancelled. Pipelines survive
// reloads, so only stages whose inputs changed run again.
func (a *App) Watch(ctx context.Context, outDir string) error {
	ctx = a.ctx(ctx)

	stopHealth, err := a.startHealthcheckServer(ctx, a.cfg.HealthcheckPort)
	if err != nil {
		return err
	}
	defer func() {
		if err := stopHealth(); err != nil {
			a.logger.Error("Health check server shutdown failed", "error", err)
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Close()
	for _, p := range configPaths(a.cfg) {
		if err := addWatchTree(watcher, p); err != nil {
			return err
		}
	}

	pipes := make(map[string]*watched)
	model, converter := a.snapshot()
	a.rebuild(ctx, pipes, model, converter, outDir)
	a.logger.Info("👀 Watching for changes...", "paths", watcher.WatchList())

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Watch stopped.")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			a.logger.Debug("File change detected.", "path", ev.Name, "op", ev.Op.String())
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addWatchTree(watcher, ev.Name); err != nil {
						a.logger.Warn("Failed to watch new directory.", "path", ev.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("File watcher error.", "error", err)

		case <-fire:
			fire = nil
			model, err := a.reload(ctx)
			if err != nil {
				a.logger.Error("Reload failed, keeping the previous designs.", "error", err)
				continue
			}
			_, converter := a.snapshot()
			a.rebuild(ctx, pipes, model, converter, outDir)
		}
	}
}

// rebuild syncs pipes with model and executes every pipeline. Failures are
// reported, never returned, so the watch loop keeps going.
func (a *App) rebuild(ctx context.Context, pipes map[string]*watched, model *config.Model, converter config.Converter, outDir string) {
	live := make(map[string]bool, len(model.Designs))
	execs := make([]executor.Executor, len(model.Designs))
	var setupFailures []BuildResult

	for i, design := range model.Designs {
		live[design.Name] = true
		spec, err := model.Machine(design.MachineName)
		if err != nil {
			setupFailures = append(setupFailures, failed(design.Name, err))
			delete(pipes, design.Name)
			continue
		}

		w, ok := pipes[design.Name]
		if ok && *w.spec == *spec {
			if err := w.exec.Reload(ctx, design); err != nil {
				setupFailures = append(setupFailures, failed(design.Name, err))
				continue
			}
		} else {
			exec, err := a.newExecutorFor(ctx, converter, design, spec)
			if err != nil {
				setupFailures = append(setupFailures, failed(design.Name, err))
				delete(pipes, design.Name)
				continue
			}
			w = &watched{exec: exec, spec: spec}
			pipes[design.Name] = w
		}
		execs[i] = w.exec
	}
	for name := range pipes {
		if !live[name] {
			a.logger.Info("Design removed.", "design", name)
			delete(pipes, name)
		}
	}

	results, err := a.buildExecutors(ctx, execs)
	if err != nil {
		a.logger.Warn("Build interrupted.", "error", err)
		return
	}
	var built []BuildResult
	for _, r := range results {
		if r.Design != "" {
			built = append(built, r)
		}
	}
	built = append(built, setupFailures...)

	a.printSummary(a.outW, built)
	if outDir != "" {
		if err := writePulses(outDir, built); err != nil {
			a.logger.Error("Failed to write pulses.", "error", err)
		}
	}
	a.health.record(built)
	if err := joinFailures(built); err != nil {
		a.logger.Warn("Build finished with failures.", "error", err)
	} else {
		a.logger.Info("🏁 Build finished.", "designs", len(built))
	}
}

func failed(design string, err error) BuildResult {
	return BuildResult{Design: design, Status: executor.Status{Phase: executor.Error}, Err: err}
}

// addWatchTree watches path, or the directory holding it, and every
// directory below.
func addWatchTree(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
