// Package executor defines the interface of the pipeline execution engine
// together with its status model and stage errors.
package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Executor builds one design. It is responsible for running stages in
// progression order, reusing cached results that are still valid and
// invalidating downstream stages on every edit.
type Executor interface {
	// Execute brings every stage up to date and returns the final pulse. A
	// design without transforms yields a nil pulse.
	Execute(ctx context.Context) (*pulse.State, error)
	// Rebuild discards every cached result and runs from stage 0.
	Rebuild(ctx context.Context) (*pulse.State, error)

	// SetParameters replaces the raw parameters of stage k.
	SetParameters(ctx context.Context, k int, raw map[string]cty.Value) error
	// SetKernel replaces the kernel and parameters of stage k.
	SetKernel(ctx context.Context, k int, kernel string, raw map[string]cty.Value) error
	// Append adds a stage at the end of the chain.
	Append(ctx context.Context, kernel string, raw map[string]cty.Value) error
	// Remove deletes stage k and renumbers the rest.
	Remove(ctx context.Context, k int) error
	// Move relocates stage from to index to.
	Move(ctx context.Context, from, to int) error
	// Reload swaps in an edited copy of the design. Cached results stay and
	// are revalidated by fingerprint on the next Execute.
	Reload(ctx context.Context, design *config.Design) error

	Status() Status
	Stages(ctx context.Context) ([]StageInfo, error)
	Design() *config.Design
}

// Phase is the pipeline-level build state.
type Phase int

const (
	// Unbuilt pipelines have stages that are not up to date.
	Unbuilt Phase = iota
	// Building pipelines are running stage Status.Stage.
	Building
	// Built pipelines have every stage up to date.
	Built
	// Error pipelines halted at stage Status.Stage.
	Error
)

var phaseNames = [...]string{"unbuilt", "building", "built", "error"}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Status is the phase plus the stage it refers to, for Building and Error.
type Status struct {
	Phase Phase
	Stage int
}

func (s Status) String() string {
	switch s.Phase {
	case Building, Error:
		return fmt.Sprintf("%s(%d)", s.Phase, s.Stage)
	default:
		return s.Phase.String()
	}
}

// StageInfo is a read-only view of one stage.
type StageInfo struct {
	Address stage.Address
	Kernel  string
	Status  stage.Status
	Record  *stage.Record
	Err     error
}
