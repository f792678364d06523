package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/localsession"
	"github.com/specialistvlad/pulsegrid/internal/registry"
	"github.com/specialistvlad/pulsegrid/internal/session"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	cfg       *Config
	loader    config.Loader
	registry  *registry.Registry
	converter config.Converter
	sessions  session.SessionFactory
	clock     func() time.Time

	// mu guards model, which the watcher swaps on reload.
	mu    sync.RWMutex
	model *config.Model

	health *healthState
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Load all configuration into the format-agnostic model first.
	cfgModel, converter, err := loader.Load(ctx, configPaths(cfg)...)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.",
		"kernels", len(cfgModel.Kernels), "machines", len(cfgModel.Machines), "designs", len(cfgModel.Designs))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go kernels registered.", "count", len(modules))

	if err := reg.PopulateDefinitionsFromModel(cfgModel); err != nil {
		panic(fmt.Errorf("failed to register kernel definitions: %w", err))
	}

	// A mismatch between manifests and compiled kernels is a programmer
	// error, so we panic.
	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:      outW,
		logger:    logger,
		cfg:       cfg,
		loader:    loader,
		registry:  reg,
		converter: converter,
		sessions:  &localsession.SessionFactory{},
		clock:     time.Now,
		model:     cfgModel,
		health:    newHealthState(),
	}
}

func configPaths(cfg *Config) []string {
	var paths []string
	if cfg.DesignPath != "" {
		paths = append(paths, cfg.DesignPath)
	}
	if cfg.KernelsPath != "" {
		paths = append(paths, cfg.KernelsPath)
	}
	return paths
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the currently loaded configuration model.
func (a *App) Model() *config.Model {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// reload re-reads the configuration from disk. Kernel definitions new to
// the registry are added; existing ones must be unchanged.
func (a *App) reload(ctx context.Context) (*config.Model, error) {
	m, converter, err := a.loader.Load(ctx, configPaths(a.cfg)...)
	if err != nil {
		return nil, err
	}
	if err := a.registry.PopulateDefinitionsFromModel(m); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.model = m
	a.converter = converter
	a.mu.Unlock()
	return m, nil
}

func (a *App) ctx(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
