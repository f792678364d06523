package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/hcl_adapter"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry performs a strict parity check between manifests and Go code.
// It checks that every definition names a compiled algorithm, that the
// manifest parameters and the Go input fields match in both directions, and
// that their types are compatible.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []string
	for _, name := range r.names() {
		errs = append(errs, r.checkDefinition(ctx, r.definitions[name])...)
	}
	if len(errs) > 0 {
		return validationError(errs)
	}
	return nil
}

func validationError(errs []string) error {
	return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
}

// checkDefinition returns the parity problems of one definition. The
// caller holds r.mu.
func (r *Registry) checkDefinition(ctx context.Context, def *config.KernelDefinition) []string {
	var errs []string
	logger := ctxlog.FromContext(ctx)
	name := def.Name

	k, ok := r.algorithms[def.Algorithm]
	if !ok {
		return []string{fmt.Sprintf("kernel '%s': algorithm '%s' is not compiled in", name, def.Algorithm)}
	}

	manifest := make(map[string]*param.Descriptor)
	for _, d := range def.Descriptors() {
		if d.Type == param.Output {
			continue
		}
		manifest[d.Name] = d
	}

	if k.InputType == nil {
		if len(manifest) > 0 {
			errs = append(errs, fmt.Sprintf("kernel '%s': manifest declares parameters, but Go kernel has no input struct", name))
		}
		return errs
	}

	goInputs := make(map[string]reflect.StructField)
	for i := 0; i < k.InputType.NumField(); i++ {
		field := k.InputType.Field(i)
		if !field.IsExported() {
			continue
		}
		if tag := hcl_adapter.FieldTag(field); tag != "" {
			goInputs[tag] = field
		}
	}

	// Check for presence mismatches
	for _, tag := range sortedKeys(goInputs) {
		if _, ok := manifest[tag]; !ok {
			errs = append(errs, fmt.Sprintf("kernel '%s': Go struct has field for parameter '%s' which is not declared in manifest", name, tag))
		}
	}
	for _, tag := range sortedKeys(manifest) {
		if _, ok := goInputs[tag]; !ok {
			errs = append(errs, fmt.Sprintf("kernel '%s': manifest declares parameter '%s' which is not found in Go struct", name, tag))
		}
	}

	// Check for type mismatches
	for _, tag := range sortedKeys(manifest) {
		goField, ok := goInputs[tag]
		if !ok {
			continue
		}
		if goField.Type == reflect.TypeOf(cty.Value{}) {
			logger.Debug("Go field takes a raw cty.Value, skipping static type check.", "kernel", name, "parameter", tag)
			continue
		}

		goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
		if err != nil {
			errs = append(errs, fmt.Sprintf("kernel '%s', parameter '%s': could not imply cty type from Go field type %s: %v", name, tag, goField.Type, err))
			continue
		}

		want := manifest[tag].Type.CtyType()
		if !want.Equals(goFieldType) {
			errs = append(errs, fmt.Sprintf("kernel '%s', parameter '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides '%s'",
				name, tag, want.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
