// Package stagestore defines the interface for storing and retrieving the
// mutable execution state of pipeline stages.
//
// The store isolates what changes while a design builds (status, cached
// results, errors) from the design itself, which only changes through
// explicit edits. One store backs one session and is discarded with it.
//
// Stages follow this lifecycle:
//
//	Pending → Running → Done (with record) OR Failed (with error)
//	Done | Failed → Stale (after an upstream change or failure)
package stagestore

import (
	"context"

	"github.com/specialistvlad/pulsegrid/internal/stage"
)

// Store manages the mutable execution state of stages.
//
// Implementations MUST be safe for concurrent use; a status endpoint may read
// while a build writes.
type Store interface {
	// SetStatus updates the execution status of a stage.
	SetStatus(ctx context.Context, addr stage.Address, status stage.Status) error

	// GetStatus returns stage.Pending if no status has been set yet.
	GetStatus(ctx context.Context, addr stage.Address) (stage.Status, error)

	// SetResult records the cached outcome of a successful stage.
	SetResult(ctx context.Context, addr stage.Address, rec *stage.Record) error

	// GetResult returns nil if the stage has no cached outcome.
	GetResult(ctx context.Context, addr stage.Address) (*stage.Record, error)

	// SetError records the failure of a stage.
	SetError(ctx context.Context, addr stage.Address, stageErr error) error

	// GetError returns nil if the stage has not failed.
	GetError(ctx context.Context, addr stage.Address) (error, error)

	// Clear drops the status, result and error of a stage.
	Clear(ctx context.Context, addr stage.Address) error
}
