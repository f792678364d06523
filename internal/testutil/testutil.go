// Package testutil holds shared fixtures for application-level tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteFiles creates files under dir, keyed by slash-separated relative
// path.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

// AssertStageRan checks the log output for the start of a stage. It
// abstracts the log attribute format, making tests more resilient to
// internal refactoring.
func AssertStageRan(t *testing.T, logs string, progression int, kernel string) {
	t.Helper()
	want := fmt.Sprintf("stage=%d kernel=%s", progression, kernel)
	require.True(t, strings.Contains(logs, want),
		"expected log output for stage %d (%s) was not found in logs", progression, kernel)
}

// DumpLogsOnRequest logs the captured output at the end of the test when
// PULSEGRID_TEST_LOGS=true.
func DumpLogsOnRequest(t *testing.T, logs *SafeBuffer) {
	t.Helper()
	t.Cleanup(func() {
		if os.Getenv("PULSEGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
}
