package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/pulsegrid/internal/config"
)

// Module is the interface that all kernel modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds all the registered kernels and definitions for a single
// application instance. It is safe for concurrent use; reloads and imports
// add definitions while builds look them up.
type Registry struct {
	mu sync.RWMutex
	// algorithms maps an algorithm name to its compiled kernel.
	algorithms map[string]*RegisteredKernel
	// definitions maps a kernel name to its manifest.
	definitions map[string]*config.KernelDefinition
	byID        map[string]*config.KernelDefinition
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		algorithms:  make(map[string]*RegisteredKernel),
		definitions: make(map[string]*config.KernelDefinition),
		byID:        make(map[string]*config.KernelDefinition),
	}
}

// PopulateDefinitionsFromModel copies the loaded kernel definitions from the
// config model into the registry.
func (r *Registry) PopulateDefinitionsFromModel(model *config.Model) error {
	names := make([]string, 0, len(model.Kernels))
	for name := range model.Kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.AddDefinition(model.Kernels[name]); err != nil {
			return err
		}
	}
	return nil
}

// AddDefinition adds one kernel definition. Names and ids must be unique;
// re-adding an identical definition is a no-op.
func (r *Registry) AddDefinition(def *config.KernelDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addDefinition(def)
}

// ImportDefinition checks def against its compiled kernel the way
// ValidateRegistry does and adds it only when it matches.
func (r *Registry) ImportDefinition(ctx context.Context, def *config.KernelDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if errs := r.checkDefinition(ctx, def); len(errs) > 0 {
		return validationError(errs)
	}
	return r.addDefinition(def)
}

func (r *Registry) addDefinition(def *config.KernelDefinition) error {
	if existing, ok := r.definitions[def.Name]; ok {
		if existing.ID == def.ID && existing.Version == def.Version {
			return nil
		}
		return fmt.Errorf("kernel name %q is already registered with id %s version %d", def.Name, existing.ID, existing.Version)
	}
	if existing, ok := r.byID[def.ID]; ok {
		return fmt.Errorf("kernel id %s is already registered by kernel %q", def.ID, existing.Name)
	}
	r.definitions[def.Name] = def
	r.byID[def.ID] = def
	return nil
}

// Definition returns the kernel definition registered under name.
func (r *Registry) Definition(name string) (*config.KernelDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[name]
	return def, ok
}

// Lookup returns a kernel definition by name together with its compiled
// kernel.
func (r *Registry) Lookup(name string) (*config.KernelDefinition, *RegisteredKernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown kernel %q", name)
	}
	return r.bind(def)
}

// LookupID returns a kernel definition by id together with its compiled
// kernel.
func (r *Registry) LookupID(id string) (*config.KernelDefinition, *RegisteredKernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byID[id]
	if !ok {
		return nil, nil, fmt.Errorf("unknown kernel id %s", id)
	}
	return r.bind(def)
}

func (r *Registry) bind(def *config.KernelDefinition) (*config.KernelDefinition, *RegisteredKernel, error) {
	k, ok := r.algorithms[def.Algorithm]
	if !ok {
		return nil, nil, fmt.Errorf("kernel %q uses unknown algorithm %q", def.Name, def.Algorithm)
	}
	return def, k, nil
}

// Names returns all kernel names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
