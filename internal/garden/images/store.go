// Package images provides blob persistence for plant photos, keyed by
// (owner, plant id).
package images

import (
	"context"
	"io"
)

// Store is the photo blob contract. Put returns the stored location that the
// plant record should reference. Delete of an absent blob is not an error.
type Store interface {
	Put(ctx context.Context, ownerID, plantID string, data io.Reader) (string, error)
	Delete(ctx context.Context, ownerID, plantID string) error
}
