// Package localsession provides a concrete implementation of the session.Session
// and session.SessionFactory interfaces for local, in-process execution.
package localsession

import (
	"context"

	"github.com/specialistvlad/pulsegrid/internal/config"
	"github.com/specialistvlad/pulsegrid/internal/ctxlog"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/specialistvlad/pulsegrid/internal/inmemorystore"
	"github.com/specialistvlad/pulsegrid/internal/localexecutor"
	"github.com/specialistvlad/pulsegrid/internal/registry"
	"github.com/specialistvlad/pulsegrid/internal/session"
)

// SessionFactory implements session.SessionFactory for local runs.
type SessionFactory struct{}

// NewSession creates and configures a new local session with its own stage
// store.
func (f *SessionFactory) NewSession(
	ctx context.Context,
	design *config.Design,
	reg *registry.Registry,
	opts session.Options,
) (session.Session, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("localsession.SessionFactory.NewSession called", "design", design.Name)

	// --- This is where the dependency injection wiring happens ---
	store := inmemorystore.New()
	exec, err := localexecutor.New(design, reg, store, localexecutor.Options{
		Machine:   opts.Machine,
		Constants: opts.Constants,
		Converter: opts.Converter,
		Clock:     opts.Clock,
	})
	if err != nil {
		return nil, err
	}
	// --- End of dependency injection ---

	return &Session{
		executor: exec,
	}, nil
}

// Session implements session.Session for local runs.
type Session struct {
	executor executor.Executor
}

// GetExecutor returns the executor that was created and wired up by the factory.
func (s *Session) GetExecutor() (executor.Executor, error) {
	return s.executor, nil
}

// Close has nothing to release for in-memory sessions.
func (s *Session) Close(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("localsession.Session.Close called")
	return nil
}
