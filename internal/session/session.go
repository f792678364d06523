// Package session defines the core interfaces for creating and managing a
// build session. It abstracts away the details of local vs. remote execution.
package session

import (
	"context"
	"time"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/specialistvlad/pulsegrid/internal/machine"
	"github.com/specialistvlad/pulsegrid/internal/registry"
)

// Options carries what every session of one application run shares.
type Options struct {
	Machine   *machine.Spec
	Constants machine.Constants
	Converter config.Converter
	Clock     func() time.Time
}

// SessionFactory creates a build Session for one design. Different
// implementations can support various backends.
type SessionFactory interface {
	NewSession(
		ctx context.Context,
		design *config.Design,
		reg *registry.Registry,
		opts Options,
	) (Session, error)
}

// Session represents the builds of a single design and manages its
// lifecycle.
type Session interface {
	GetExecutor() (executor.Executor, error)
	// Close releases any resources held by the session. It accepts a context
	// to allow for graceful cleanup operations.
	Close(ctx context.Context) error
}
