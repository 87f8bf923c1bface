package images

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// InMemoryStore keeps blobs in a map. Intended for tests and local
// development.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(ctx context.Context, ownerID, plantID string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := objectKey(ownerID, plantID)
	s.blobs[key] = b
	return fmt.Sprintf("mem://%s", key), nil
}

func (s *InMemoryStore) Delete(ctx context.Context, ownerID, plantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, objectKey(ownerID, plantID))
	return nil
}

// Get returns the stored blob. Test helper; not part of the Store contract.
func (s *InMemoryStore) Get(ownerID, plantID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[objectKey(ownerID, plantID)]
	return b, ok
}
