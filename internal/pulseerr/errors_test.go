package pulseerr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	cases := []struct {
		err  Coded
		code string
	}{
		{Parameterf("dwell_time", "must be positive"), "parameter_error"},
		{&AlgorithmError{Message: "boom"}, "algorithm_error"},
		{Algorithmf("too_few_points", "only %d", 2), "too_few_points"},
		{&ConstraintViolation{Constraint: "b1_maximum"}, "constraint_violation"},
		{&IOError{Path: "x", Err: os.ErrNotExist}, "io_error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.ErrorCode())
	}
}

func TestWrappedErrorsAreRecoverable(t *testing.T) {
	base := &IOError{Path: "/tmp/pulse.txt", Err: os.ErrNotExist}
	wrapped := fmt.Errorf("stage 0: %w", base)

	var ioErr *IOError
	require.True(t, errors.As(wrapped, &ioErr))
	assert.Equal(t, "/tmp/pulse.txt", ioErr.Path)
	assert.ErrorIs(t, wrapped, os.ErrNotExist)

	pe := Parameterf("filter_type", "option %d out of range", 7)
	assert.Contains(t, pe.Error(), `"filter_type"`)
	assert.Contains(t, pe.Error(), "option 7 out of range")
}
