package achievements

import (
	"context"
	"fmt"
	"sync"

	"github.com/verdora/gardensync/internal/common"
)

// InMemoryRepository keeps progress values in a mutex-guarded map.
// Intended for tests and local development.
type InMemoryRepository struct {
	mu     sync.RWMutex
	values map[string]map[string]int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{values: make(map[string]map[string]int64)}
}

func (r *InMemoryRepository) GetValue(ctx context.Context, ownerID, achievementType string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[ownerID][achievementType]
	if !ok {
		return 0, fmt.Errorf("achievement %s: %w", achievementType, common.ErrNotFound)
	}
	return v, nil
}

func (r *InMemoryRepository) RecordValue(ctx context.Context, ownerID, achievementType string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned, ok := r.values[ownerID]
	if !ok {
		owned = make(map[string]int64)
		r.values[ownerID] = owned
	}
	if value > owned[achievementType] {
		owned[achievementType] = value
	}
	return nil
}
