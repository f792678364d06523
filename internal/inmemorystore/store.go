// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the stagestore.Store interface.
//
// # Concurrency Model
//
// Each stage's state is independent, so the store keeps one sync.Map per
// kind of state. A health endpoint reading statuses never blocks the build
// writing results.
package inmemorystore

import (
	"context"
	"sync"

	"github.com/specialistvlad/pulsegrid/internal/stage"
	"github.com/specialistvlad/pulsegrid/internal/stagestore"
)

// Store is an in-memory implementation of stagestore.Store using sync.Map
// for fine-grained concurrent access without global lock contention.
//
// The store maintains three independent sync.Maps keyed by stage.Address:
//   - states: stage.Status
//   - results: *stage.Record for stages that completed
//   - errors: the error of a failed stage
type Store struct {
	states  sync.Map
	results sync.Map
	errors  sync.Map
}

// New creates a new, empty in-memory stage state store.
func New() stagestore.Store {
	return &Store{}
}

// SetStatus updates the execution status of a specific stage.
func (s *Store) SetStatus(ctx context.Context, addr stage.Address, status stage.Status) error {
	s.states.Store(addr, status)
	return nil
}

// GetStatus retrieves the execution status of a specific stage.
// If a status has not been set, it returns stage.Pending.
func (s *Store) GetStatus(ctx context.Context, addr stage.Address) (stage.Status, error) {
	status, ok := s.states.Load(addr)
	if !ok {
		return stage.Pending, nil
	}
	return status.(stage.Status), nil
}

// SetResult records the cached outcome of a stage.
func (s *Store) SetResult(ctx context.Context, addr stage.Address, rec *stage.Record) error {
	s.results.Store(addr, rec)
	return nil
}

// GetResult retrieves the cached outcome of a stage.
func (s *Store) GetResult(ctx context.Context, addr stage.Address) (*stage.Record, error) {
	rec, ok := s.results.Load(addr)
	if !ok {
		return nil, nil
	}
	return rec.(*stage.Record), nil
}

// SetError records the failure error of a stage.
func (s *Store) SetError(ctx context.Context, addr stage.Address, stageErr error) error {
	s.errors.Store(addr, stageErr)
	return nil
}

// GetError retrieves the recorded error of a failed stage.
func (s *Store) GetError(ctx context.Context, addr stage.Address) (error, error) {
	err, ok := s.errors.Load(addr)
	if !ok {
		return nil, nil
	}
	return err.(error), nil
}

// Clear drops everything recorded for a stage.
func (s *Store) Clear(ctx context.Context, addr stage.Address) error {
	s.states.Delete(addr)
	s.results.Delete(addr)
	s.errors.Delete(addr)
	return nil
}
