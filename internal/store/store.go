// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/attent-app/attent/internal/domain"
)

// Repository defines the interface for persisting users and state snapshots.
// Snapshot history is append-only: rows are never updated or deleted.
type Repository interface {
	// ResolveOrCreateUser returns the user id for a machine id, creating the
	// user on first contact. Idempotent: the same machine id always resolves
	// to the same user id.
	ResolveOrCreateUser(ctx context.Context, machineID, username string) (int64, error)

	// LatestSnapshot returns the most recently appended AppState for a user,
	// or nil if the user has no snapshots yet.
	LatestSnapshot(ctx context.Context, userID int64) (*domain.AppState, error)

	// AppendSnapshot records a new immutable snapshot of the user's state.
	AppendSnapshot(ctx context.Context, userID int64, state *domain.AppState) error

	// ActivityBetween returns the activity snapshots observed in [start, end),
	// ordered by observation time.
	ActivityBetween(ctx context.Context, userID int64, start, end time.Time) ([]domain.ObservedActivity, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
