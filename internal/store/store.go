// Package store holds report records as the engine's single source of truth.
//
// Two implementations of the Store interface are provided:
//   - MemoryStore: in-process, for testing and single-node deployments.
//   - PostgresStore: durable, for production use.
//
// Both enforce optimistic concurrency: Update commits only when the caller's
// snapshot carries the currently stored version, so for a single report all
// committed transitions form one linear order. Concurrent writers lose with
// report.ErrStaleVersion and must re-read.
package store

import (
	"context"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/google/uuid"
)

// Store is the persistence interface for reports. The lifecycle manager is the
// only writer; all reads return snapshots that are safe to retain and mutate.
type Store interface {
	// Create persists a new report, assigning timestamps and Version 1.
	Create(ctx context.Context, r *report.Report) error

	// Get returns a snapshot of the report, or report.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*report.Report, error)

	// List returns snapshots of all reports, newest first.
	List(ctx context.Context) ([]*report.Report, error)

	// Update commits r if r.Version matches the stored version, bumping the
	// version and UpdatedAt on success. Returns report.ErrStaleVersion when the
	// stored report has moved on, report.ErrNotFound when it does not exist.
	// On success r reflects the committed version.
	Update(ctx context.Context, r *report.Report) error
}
