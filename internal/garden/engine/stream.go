package engine

import (
	"slices"
	"sync"

	"github.com/verdora/gardensync/internal/garden/models"
)

// snapshotStream fans the materialized collection out to subscribers.
//
// Delivery rules:
//   - deep-equal snapshots are never delivered twice (dedup on publish);
//   - each subscriber has a one-slot buffer and an undelivered value is
//     replaced by a newer one, so a slow subscriber sees the latest
//     snapshot rather than an unbounded backlog;
//   - publishes happen under the mutex, which keeps deliveries to any one
//     subscriber in causal order.
type snapshotStream struct {
	mu     sync.Mutex
	subs   map[int]chan []models.OwnedPlant
	nextID int

	last    []models.OwnedPlant
	hasLast bool
}

func newSnapshotStream() *snapshotStream {
	return &snapshotStream{subs: make(map[int]chan []models.OwnedPlant)}
}

func (s *snapshotStream) publish(list []models.OwnedPlant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLast && models.EqualPlants(s.last, list) {
		return
	}

	snap := slices.Clone(list)
	s.last = snap
	s.hasLast = true

	for _, ch := range s.subs {
		offerLatest(ch, snap)
	}
}

// offerLatest delivers snap to a one-slot channel, evicting an undelivered
// older value first. Only the publisher writes to the channel, so the
// evict-then-send pair cannot livelock.
func offerLatest(ch chan []models.OwnedPlant, snap []models.OwnedPlant) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// subscribe registers a new subscriber and primes it with the latest
// snapshot so the first receive never observes an empty stream.
func (s *snapshotStream) subscribe() (<-chan []models.OwnedPlant, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []models.OwnedPlant, 1)
	if s.hasLast {
		ch <- s.last
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// cleanup detaches all subscribers. The cached last snapshot survives, so a
// later subscriber still gets primed immediately.
func (s *snapshotStream) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
