// Package pulseerr holds the failure taxonomy shared by parameter resolution,
// kernels, constraint checks and file access. Every type carries a stable
// machine-readable code next to its human-readable message.
package pulseerr

import (
	"fmt"
)

// Coded is implemented by every error in this package.
type Coded interface {
	error
	ErrorCode() string
}

// ParameterError reports a bad, missing or out-of-range kernel input.
type ParameterError struct {
	Field   string
	Message string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Field, e.Message)
}

// ErrorCode implements Coded.
func (e *ParameterError) ErrorCode() string { return "parameter_error" }

// Parameterf builds a ParameterError with a formatted message.
func Parameterf(field, format string, args ...any) *ParameterError {
	return &ParameterError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AlgorithmError reports a violated numeric precondition inside a kernel.
type AlgorithmError struct {
	Code    string
	Message string
}

func (e *AlgorithmError) Error() string { return e.Message }

// ErrorCode implements Coded.
func (e *AlgorithmError) ErrorCode() string {
	if e.Code == "" {
		return "algorithm_error"
	}
	return e.Code
}

// Algorithmf builds an AlgorithmError with a formatted message.
func Algorithmf(code, format string, args ...any) *AlgorithmError {
	return &AlgorithmError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ConstraintViolation reports a machine or physical limit that was exceeded
// under a fatal policy.
type ConstraintViolation struct {
	Constraint string
	Message    string
	Limit      float64
	Value      float64
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint %s violated: %s (value %g, limit %g)", e.Constraint, e.Message, e.Value, e.Limit)
}

// ErrorCode implements Coded.
func (e *ConstraintViolation) ErrorCode() string { return "constraint_violation" }

// IOError wraps a failure to read or write an external file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("file %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrorCode implements Coded.
func (e *IOError) ErrorCode() string { return "io_error" }
