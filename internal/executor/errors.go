package executor

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
)

// StageError reports the stage at which a pipeline halted. It unwraps to the
// typed cause.
type StageError struct {
	Progression int
	KernelID    string
	KernelName  string
	// Param names the offending parameter when the cause is a
	// ParameterError.
	Param string
	Err   error
}

// NewStageError wraps err with its stage context.
func NewStageError(progression int, kernelID, kernelName string, err error) *StageError {
	se := &StageError{
		Progression: progression,
		KernelID:    kernelID,
		KernelName:  kernelName,
		Err:         err,
	}
	var pe *pulseerr.ParameterError
	if errors.As(err, &pe) {
		se.Param = pe.Field
	}
	return se
}

func (e *StageError) Error() string {
	name := e.KernelName
	if name == "" {
		name = "unknown kernel"
	}
	return fmt.Sprintf("stage %d (%s): %v", e.Progression, name, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorCode forwards the cause's code.
func (e *StageError) ErrorCode() string {
	var coded pulseerr.Coded
	if errors.As(e.Err, &coded) {
		return coded.ErrorCode()
	}
	return "stage_error"
}
