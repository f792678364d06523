package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A design with a syntax error makes app.NewApp() panic while loading.
	invalidHCL := `
		design "broken" {
			transform "slr" {
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	args := []string{"run", filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(context.Background(), out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")

	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to load configuration"), "The error message should contain the underlying reason for the panic.")
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error for help")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"run", "--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_BuildsDesign(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	design := `
design "excite" {
  transform "slr" {
    tip_angle = 30
  }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "excite.hcl"), []byte(design), 0600))
	pulses := filepath.Join(dir, "out")

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--log-level", "warn", "run", "--out", pulses, dir})
	require.NoError(t, err)
	require.Contains(t, out.String(), "design excite: built")

	_, err = os.Stat(filepath.Join(pulses, "excite.txt"))
	require.NoError(t, err)
}

func TestRun_ListsKernels(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, []string{"--log-level", "error", "kernels"}))
	require.Contains(t, out.String(), "rootreflect")
}
