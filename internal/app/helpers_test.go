package app

import (
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/hcl_adapter"
	"github.com/specialistvlad/pulsegrid/internal/registry"
	"github.com/specialistvlad/pulsegrid/internal/testutil"
	"github.com/specialistvlad/pulsegrid/modules"
)

// setupAppTest creates a new app instance for system testing with debug
// logs captured in the returned buffer.
func setupAppTest(t *testing.T, cfg Config, mods ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	appConfig, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	logBuffer := &testutil.SafeBuffer{}
	testutil.DumpLogsOnRequest(t, logBuffer)

	testApp := NewApp(logBuffer, appConfig, hcl_adapter.NewLoader(modules.Manifests), mods...)
	return testApp, logBuffer
}

// withCore appends extra modules to the compiled-in ones.
func withCore(extra ...registry.Module) []registry.Module {
	return append(append([]registry.Module(nil), coreModules...), extra...)
}

const sliceDesigns = `
machine "bench" {
  max_b1_field = 40
}

design "alpha" {
  comment = "linear phase"
  transform "slr" {
    time_steps = 128
    duration   = 2.56
  }
}

design "beta" {
  machine = machine.bench
  transform "slr" {
    filter_type = 1
  }
  transform "interpolate" {
    interpolation_factor = 2
  }
}
`
