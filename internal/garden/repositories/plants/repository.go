// Package plants provides persistence for owned plant records. The store is
// a dumb layer: records come back with raw, unrecomputed health fields, and
// materialization stays the engine's job.
package plants

import (
	"context"
	"time"

	"github.com/verdora/gardensync/internal/garden/models"
)

// Repository is the garden store contract. Get/Replace/Delete fail with
// common.ErrNotFound when the id does not exist for the owner.
type Repository interface {
	// NewID issues an identifier that never collides with a previously
	// issued id for the same owner.
	NewID() string

	// Create persists a new record, stamping DateOfCreation. The id must
	// come from NewID; reusing an existing id is an error.
	Create(ctx context.Context, ownerID, id string, plant models.Plant, lastWatered time.Time) (models.OwnedPlant, error)

	// Get returns the record with raw health fields.
	Get(ctx context.Context, ownerID, id string) (models.OwnedPlant, error)

	// ListAll returns every record for the owner, ordered by creation time.
	ListAll(ctx context.Context, ownerID string) ([]models.OwnedPlant, error)

	// Replace overwrites the stored record with updated. DateOfCreation and
	// the identifier are taken from the stored row, never from the caller.
	Replace(ctx context.Context, updated models.OwnedPlant) error

	// Delete removes the record.
	Delete(ctx context.Context, ownerID, id string) error

	// ListOwners returns every owner with at least one record. Used by the
	// periodic refresh sweep.
	ListOwners(ctx context.Context) ([]string, error)
}
