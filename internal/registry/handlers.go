package registry

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/machine"
)

// RegisteredKernel holds the compiled Go parts of one algorithm.
type RegisteredKernel struct {
	Kernel kernel.Kernel
	// NewInput returns a pointer to a fresh input struct. It may be nil for
	// kernels without parameters.
	NewInput func() any
	// InputType is derived from NewInput at registration.
	InputType reflect.Type
	// Constraints declares how each machine constraint is enforced.
	Constraints machine.Policies
	// NeedsPrior marks kernels that transform an existing pulse.
	NeedsPrior bool
}

// RegisterKernel registers the compiled kernel for an algorithm name.
func (r *Registry) RegisterKernel(algorithm string, k *RegisteredKernel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.algorithms[algorithm]; exists {
		panic(fmt.Sprintf("kernel algorithm '%s' already registered", algorithm))
	}
	if k.Kernel == nil {
		panic(fmt.Sprintf("kernel algorithm '%s' registered without an implementation", algorithm))
	}
	if k.NewInput != nil && k.InputType == nil {
		t := reflect.TypeOf(k.NewInput())
		if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
			panic(fmt.Sprintf("kernel algorithm '%s': NewInput must return a pointer to a struct, got %s", algorithm, t))
		}
		k.InputType = t.Elem()
	}
	slog.Debug("Registering kernel.", "algorithm", algorithm)
	r.algorithms[algorithm] = k
}
