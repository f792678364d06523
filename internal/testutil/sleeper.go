package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/kernel"
	"github.com/specialistvlad/pulsegrid/internal/pulse"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// SleeperManifest declares the "sleeper" kernel served by
// MockSleeperModule.
const SleeperManifest = `
kernel "sleeper" {
  id          = "5d8f3a91-0c4e-4b7a-9e21-6a3f0d7c8b14"
  version     = 1
  description = "Sleeps, then emits a constant pulse."

  parameter "amplitude" {
    type    = double
    default = 1
  }
}
`

// SleeperInput is the decoded parameter set of the sleeper kernel.
type SleeperInput struct {
	Amplitude float64 `pulse:"amplitude"`
}

// MockSleeperModule is a shared, self-contained module for concurrency
// tests. It records how many stages run at the same time.
type MockSleeperModule struct {
	sleep time.Duration

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
}

// NewMockSleeperModule creates a sleeper whose stages take sleep to run.
func NewMockSleeperModule(sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{sleep: sleep}
}

// Register registers the "sleeper" kernel.
func (m *MockSleeperModule) Register(r *registry.Registry) {
	r.RegisterKernel("sleeper", &registry.RegisteredKernel{
		Kernel:   kernel.Func(m.run),
		NewInput: func() any { return new(SleeperInput) },
	})
}

func (m *MockSleeperModule) run(ctx context.Context, req *kernel.Request) (*kernel.Result, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	select {
	case <-time.After(m.sleep):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	in := req.Input.(*SleeperInput)
	wave := make([]complex128, 16)
	for i := range wave {
		wave[i] = complex(in.Amplitude, 0)
	}
	return kernel.NewResult(pulse.NewState(wave, 1e-5)), nil
}

// MaxInFlight is the highest number of stages seen running at once.
func (m *MockSleeperModule) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Calls is the number of stages run so far.
func (m *MockSleeperModule) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
