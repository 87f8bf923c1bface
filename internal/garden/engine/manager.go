package engine

import (
	"context"
	"sync"
	"time"

	"github.com/verdora/gardensync/internal/garden/images"
	"github.com/verdora/gardensync/internal/garden/notify"
	"github.com/verdora/gardensync/internal/garden/repositories/plants"
	"github.com/verdora/gardensync/internal/garden/streaks"
	"github.com/verdora/gardensync/internal/logging"
)

// Manager vends one Engine per owner over shared backing stores.
type Manager struct {
	store    plants.Repository
	images   images.Store
	streaks  *streaks.Service
	notifier *notify.Notifier
	logger   logging.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

func NewManager(store plants.Repository, imgs images.Store, streakSvc *streaks.Service, notifier *notify.Notifier, logger logging.Logger) *Manager {
	return &Manager{
		store:    store,
		images:   imgs,
		streaks:  streakSvc,
		notifier: notifier,
		logger:   logger,
		engines:  make(map[string]*Engine),
	}
}

// For returns the engine scoped to ownerID, creating it on first use.
func (m *Manager) For(ownerID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	eng, ok := m.engines[ownerID]
	if !ok {
		eng = New(ownerID, m.store, m.images, m.streaks, m.notifier, m.logger)
		m.engines[ownerID] = eng
	}
	return eng
}

// Cleanup detaches subscriptions on every engine. Idempotent.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, eng := range m.engines {
		eng.Cleanup()
	}
}

// Refresher periodically re-lists every owner's garden. Correctness never
// depends on it: it only improves snapshot freshness for idle collections
// and folds running streaks into the achievements store, the way the
// original hourly sweep did.
type Refresher struct {
	manager  *Manager
	store    plants.Repository
	streaks  *streaks.Service
	interval time.Duration
	logger   logging.Logger

	now func() time.Time
}

func NewRefresher(manager *Manager, store plants.Repository, streakSvc *streaks.Service, interval time.Duration, logger logging.Logger) *Refresher {
	return &Refresher{
		manager:  manager,
		store:    store,
		streaks:  streakSvc,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep materializes every owner's collection once. Errors for one owner
// are logged and never stop the sweep.
func (r *Refresher) Sweep(ctx context.Context) {
	owners, err := r.store.ListOwners(ctx)
	if err != nil {
		r.logger.Warn(ctx, "sweep: listing owners failed", "error", err)
		return
	}

	now := r.now().UTC()
	for _, owner := range owners {
		list, err := r.manager.For(owner).GetAllOwnedPlants(ctx)
		if err != nil {
			r.logger.Warn(ctx, "sweep: refresh failed", "owner", owner, "error", err)
			continue
		}

		if err := r.streaks.RecordPlantCount(ctx, owner, len(list)); err != nil {
			r.logger.Warn(ctx, "sweep: plant count update failed", "owner", owner, "error", err)
		}
		for _, rec := range list {
			if rec.HealthySince == nil {
				continue
			}
			if err := r.streaks.RecordStreak(ctx, owner, *rec.HealthySince, now); err != nil {
				r.logger.Warn(ctx, "sweep: streak update failed", "owner", owner, "plant", rec.ID, "error", err)
			}
		}
	}
}
