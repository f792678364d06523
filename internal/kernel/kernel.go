// Package kernel defines the contract between the pipeline and the compiled
// transform algorithms.
//
// A kernel is a pure function of its Request: the prior pulse, the resolved
// parameters, the machine description and the physical constants. It must not
// read package-level state or modify the prior pulse, so that running the
// same Request twice yields bit-identical Results.
package kernel

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/zclconf/go-cty/cty"
)

// Kernel is one compiled transform algorithm.
type Kernel interface {
	Run(ctx context.Context, req *Request) (*Result, error)
}

// Func adapts a plain function to the Kernel interface.
type Func func(ctx context.Context, req *Request) (*Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// Request carries everything a kernel may read.
type Request struct {
	// Prior is the state produced by the previous stage, nil at stage 0.
	Prior *pulse.State
	// Params are the resolved parameters of this stage.
	Params *param.Values
	// Input is the kernel's Go input struct decoded from Params.
	Input any
	// Machine is shared between concurrent builds and must not be modified.
	Machine   *machine.Spec
	Settings  machine.Settings
	Constants machine.Constants
	// Clock is used for wall-clock halting conditions.
	Clock func() time.Time
	// Dir is the directory relative FileRef parameters resolve against.
	Dir string
}

// RequirePrior returns an AlgorithmError when the request has no prior
// state.
func (r *Request) RequirePrior() error {
	if r.Prior == nil || r.Prior.Len() == 0 {
		return pulseerr.Algorithmf("missing_prior", "this transform requires a prior pulse and cannot be the first stage")
	}
	return nil
}

// Consts returns the request's constants, proton defaults when unset.
func (r *Request) Consts() machine.Constants {
	if r.Constants.GammaHzPerMicroTesla == 0 {
		return machine.DefaultConstants()
	}
	return r.Constants
}

// Path resolves a FileRef value against the design directory.
func (r *Request) Path(ref string) string {
	if filepath.IsAbs(ref) || r.Dir == "" {
		return ref
	}
	return filepath.Join(r.Dir, ref)
}

// Now returns the request clock's current time.
func (r *Request) Now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock()
}

// Result is what a kernel produces.
type Result struct {
	State *pulse.State
	// Outputs populate the stage's Output parameters.
	Outputs map[string]cty.Value
	// Diagnostics are named numeric sequences, such as per-iteration errors.
	Diagnostics map[string][]float64
	Warnings    []string
}

// NewResult returns a Result for st with empty output maps.
func NewResult(st *pulse.State) *Result {
	return &Result{
		State:       st,
		Outputs:     make(map[string]cty.Value),
		Diagnostics: make(map[string][]float64),
	}
}

// SetFloat records a numeric output.
func (r *Result) SetFloat(name string, v float64) {
	r.Outputs[name] = cty.NumberFloatVal(v)
}

// SetInt records an integer output.
func (r *Result) SetInt(name string, v int) {
	r.Outputs[name] = cty.NumberIntVal(int64(v))
}

// SetText records a text output.
func (r *Result) SetText(name string, v string) {
	r.Outputs[name] = cty.StringVal(v)
}

// Warnf appends a formatted warning.
func (r *Result) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
