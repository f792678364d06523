// Package stage defines the identity, status and cached result of one
// pipeline stage.
package stage

import (
	"fmt"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/param"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
)

// Address identifies a stage by design id and progression index.
type Address struct {
	Design      string
	Progression int
}

// String renders the address as design[progression].
func (a Address) String() string {
	return fmt.Sprintf("%s[%d]", a.Design, a.Progression)
}

// Status is the execution state of a stage.
type Status int

const (
	// Pending stages have never run.
	Pending Status = iota
	// Running stages are executing their kernel.
	Running
	// Done stages hold a valid cached result.
	Done
	// Failed stages hold the error that halted the pipeline.
	Failed
	// Stale stages sit downstream of a change or a failure; their cached
	// result was discarded.
	Stale
)

var statusNames = [...]string{"pending", "running", "done", "failed", "stale"}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Record is the cached outcome of a successful stage.
type Record struct {
	// Fingerprint covers everything the stage result depends on, including
	// the upstream fingerprint.
	Fingerprint string
	State       *pulse.State
	// Params are the resolved parameters, Output values included.
	Params      *param.Values
	Diagnostics map[string][]float64
	Warnings    []string
	Elapsed     time.Duration
}

// Clone returns a deep copy, so callers cannot change what a later cache
// hit returns.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.State = r.State.Clone()
	out.Params = r.Params.Clone()
	out.Warnings = append([]string(nil), r.Warnings...)
	if r.Diagnostics != nil {
		out.Diagnostics = make(map[string][]float64, len(r.Diagnostics))
		for k, v := range r.Diagnostics {
			out.Diagnostics[k] = append([]float64(nil), v...)
		}
	}
	return &out
}
