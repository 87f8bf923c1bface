package plants

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verdora/gardensync/internal/common"
	"github.com/verdora/gardensync/internal/garden/models"
)

// InMemoryRepository keeps records in a per-owner map guarded by a mutex,
// which gives each record the atomic read-modify-write semantics the engine
// relies on. Intended for tests and local development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	gardens map[string]map[string]models.OwnedPlant

	// now is a clock seam for tests.
	now func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		gardens: make(map[string]map[string]models.OwnedPlant),
		now:     time.Now,
	}
}

// WithClock overrides the creation-time clock. Test helper.
func (r *InMemoryRepository) WithClock(now func() time.Time) *InMemoryRepository {
	r.now = now
	return r
}

func (r *InMemoryRepository) NewID() string {
	return uuid.NewString()
}

func (r *InMemoryRepository) Create(ctx context.Context, ownerID, id string, plant models.Plant, lastWatered time.Time) (models.OwnedPlant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	garden, ok := r.gardens[ownerID]
	if !ok {
		garden = make(map[string]models.OwnedPlant)
		r.gardens[ownerID] = garden
	}
	if _, exists := garden[id]; exists {
		return models.OwnedPlant{}, fmt.Errorf("insert plant: %w: duplicate id %q", common.ErrStoreUnavailable, id)
	}

	rec := models.OwnedPlant{
		ID:             id,
		OwnerID:        ownerID,
		Plant:          plant,
		LastWatered:    lastWatered,
		DateOfCreation: r.now().UTC(),
	}
	garden[id] = rec
	return rec, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, ownerID, id string) (models.OwnedPlant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.gardens[ownerID][id]
	if !ok {
		return models.OwnedPlant{}, fmt.Errorf("plant %q: %w", id, common.ErrNotFound)
	}
	return rec, nil
}

func (r *InMemoryRepository) ListAll(ctx context.Context, ownerID string) ([]models.OwnedPlant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	garden := r.gardens[ownerID]
	result := make([]models.OwnedPlant, 0, len(garden))
	for _, rec := range garden {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DateOfCreation.Equal(result[j].DateOfCreation) {
			return result[i].DateOfCreation.Before(result[j].DateOfCreation)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *InMemoryRepository) Replace(ctx context.Context, updated models.OwnedPlant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	garden := r.gardens[updated.OwnerID]
	stored, ok := garden[updated.ID]
	if !ok {
		return fmt.Errorf("plant %q: %w", updated.ID, common.ErrNotFound)
	}

	// Identifier and creation time are immutable.
	updated.ID = stored.ID
	updated.DateOfCreation = stored.DateOfCreation
	garden[updated.ID] = updated
	return nil
}

func (r *InMemoryRepository) ListOwners(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make([]string, 0, len(r.gardens))
	for owner, garden := range r.gardens {
		if len(garden) > 0 {
			owners = append(owners, owner)
		}
	}
	sort.Strings(owners)
	return owners, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	garden := r.gardens[ownerID]
	if _, ok := garden[id]; !ok {
		return fmt.Errorf("plant %q: %w", id, common.ErrNotFound)
	}
	delete(garden, id)
	return nil
}
