// Package engine implements the garden synchronization engine: it owns one
// owner's plant collection, derives health from watering history on every
// access, keeps the document store, photo blobs and streak bookkeeping
// consistent, and exposes a deduplicated snapshot stream of the collection.
//
// Health is never recomputed in the background. Reads, lists and mutations
// are the only triggers, so a plant silently decaying over time is surfaced
// the next time anything touches the collection.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/verdora/gardensync/internal/common"
	"github.com/verdora/gardensync/internal/garden/health"
	"github.com/verdora/gardensync/internal/garden/images"
	"github.com/verdora/gardensync/internal/garden/models"
	"github.com/verdora/gardensync/internal/garden/notify"
	"github.com/verdora/gardensync/internal/garden/repositories/plants"
	"github.com/verdora/gardensync/internal/garden/streaks"
	"github.com/verdora/gardensync/internal/logging"
)

// Engine orchestrates the backing stores for a single authenticated owner.
// All operations are safe for concurrent use; per-record correctness relies
// on the store's atomic read-modify-write semantics, not a global lock.
type Engine struct {
	ownerID  string
	store    plants.Repository
	images   images.Store
	streaks  streaks.Port
	notifier *notify.Notifier
	logger   logging.Logger

	stream *snapshotStream

	// now is a clock seam for tests.
	now func() time.Time
}

// New builds an engine scoped to ownerID. notifier may be nil when watering
// reminders are not wanted.
func New(ownerID string, store plants.Repository, imgs images.Store, port streaks.Port, notifier *notify.Notifier, logger logging.Logger) *Engine {
	return &Engine{
		ownerID:  ownerID,
		store:    store,
		images:   imgs,
		streaks:  port,
		notifier: notifier,
		logger:   logger.With("owner", ownerID),
		stream:   newSnapshotStream(),
		now:      time.Now,
	}
}

// WithClock overrides the engine clock. Test helper.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// NewID issues an identifier for a subsequent SaveToGarden.
func (e *Engine) NewID() string {
	return e.store.NewID()
}

// transition describes what a single materialization changed.
type transition struct {
	changed        bool
	enteredHealthy bool
	leftHealthy    bool
	needsAttention bool
}

// materialize recomputes the derived health fields of rec at the given
// instant. HealthySince is edge-triggered: it moves only when the healthy
// band boundary is actually crossed, never while the plant stays on one side.
func (e *Engine) materialize(rec models.OwnedPlant, now time.Time) (models.OwnedPlant, transition) {
	oldStatus := rec.Plant.HealthStatus
	newStatus := health.Classify(rec.LastWatered, rec.Plant.WateringFrequency, rec.PreviousLastWatered, now)

	tr := transition{changed: newStatus != oldStatus}
	rec.Plant.HealthStatus = newStatus
	rec.Plant.HealthStatusDescription = newStatus.Description()

	if tr.changed {
		wasHealthy := oldStatus.InHealthyBand()
		isHealthy := newStatus.InHealthyBand()
		switch {
		case isHealthy && !wasHealthy:
			t := now
			rec.HealthySince = &t
			tr.enteredHealthy = true
		case wasHealthy && !isHealthy:
			rec.HealthySince = nil
			tr.leftHealthy = true
		}
		tr.needsAttention = newStatus.NeedsAttention()
	}
	return rec, tr
}

// sideEffects fires the cross-store consequences of a band transition.
// StreakPort errors are logged, never propagated: the plant mutation is
// already committed. Watering reminders go out on a detached context so the
// retry schedule cannot block the caller.
func (e *Engine) sideEffects(ctx context.Context, rec models.OwnedPlant, tr transition) {
	if tr.enteredHealthy {
		if err := e.streaks.OnHealthyBandEnter(ctx, e.ownerID, rec.ID); err != nil {
			e.logger.Warn(ctx, "streak port enter failed", "plant", rec.ID, "error", fmt.Errorf("%w: %v", common.ErrStreakPort, err))
		}
	}
	if tr.leftHealthy {
		if err := e.streaks.OnHealthyBandExit(ctx, e.ownerID, rec.ID); err != nil {
			e.logger.Warn(ctx, "streak port exit failed", "plant", rec.ID, "error", fmt.Errorf("%w: %v", common.ErrStreakPort, err))
		}
	}
	if tr.needsAttention && e.notifier != nil {
		go func(rec models.OwnedPlant) {
			_ = e.notifier.WaterReminder(context.WithoutCancel(ctx), e.ownerID, rec.ID, rec.Plant.Name, rec.Plant.HealthStatus)
		}(rec)
	}
}

// SaveToGarden persists a new plant. A pending local photo is uploaded
// first and the record written after, so a stored record never references a
// blob that does not exist.
func (e *Engine) SaveToGarden(ctx context.Context, plant models.Plant, id string, lastWatered time.Time) (models.OwnedPlant, error) {
	if plant.WateringFrequency <= 0 {
		return models.OwnedPlant{}, fmt.Errorf("watering frequency must be positive: %w", common.ErrValidation)
	}
	if lastWatered.IsZero() {
		return models.OwnedPlant{}, fmt.Errorf("last watered time is required: %w", common.ErrValidation)
	}
	if id == "" {
		id = e.store.NewID()
	}

	if plant.PendingPhotoPath != "" {
		f, err := os.Open(plant.PendingPhotoPath)
		if err != nil {
			return models.OwnedPlant{}, fmt.Errorf("pending photo not readable: %w", common.ErrValidation)
		}
		loc, err := e.images.Put(ctx, e.ownerID, id, f)
		f.Close()
		if err != nil {
			return models.OwnedPlant{}, fmt.Errorf("owner %s: upload photo: %w", e.ownerID, err)
		}
		plant.PhotoURL = loc
		plant.PendingPhotoPath = ""
	}

	rec, err := e.store.Create(ctx, e.ownerID, id, plant, lastWatered)
	if err != nil {
		return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}

	now := e.now().UTC()
	rec, tr := e.materialize(rec, now)
	if tr.changed {
		if err := e.store.Replace(ctx, rec); err != nil {
			return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
		}
		e.sideEffects(ctx, rec, tr)
	}

	e.refresh(ctx)
	return rec, nil
}

// GetOwnedPlant returns the record with health classified against the
// current time. A crossed band boundary is written through to the store and
// the streak port is notified within the same recomputation.
func (e *Engine) GetOwnedPlant(ctx context.Context, id string) (models.OwnedPlant, error) {
	rec, err := e.store.Get(ctx, e.ownerID, id)
	if err != nil {
		return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}

	rec, tr := e.materialize(rec, e.now().UTC())
	if tr.changed {
		if err := e.store.Replace(ctx, rec); err != nil {
			return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
		}
		e.sideEffects(ctx, rec, tr)
		e.refresh(ctx)
	}
	return rec, nil
}

// GetAllOwnedPlants returns every owned plant, freshly materialized. This is
// the main trigger surfacing pure time-decay transitions: a plant that
// silently crossed a band boundary gets its write-through and side effects
// here. A persistence failure for one record keeps its stale health and
// never suppresses the rest of the list.
func (e *Engine) GetAllOwnedPlants(ctx context.Context) ([]models.OwnedPlant, error) {
	list, err := e.materializeAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}
	return list, nil
}

func (e *Engine) materializeAll(ctx context.Context) ([]models.OwnedPlant, error) {
	list, err := e.store.ListAll(ctx, e.ownerID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	for i := range list {
		mat, tr := e.materialize(list[i], now)
		if tr.changed {
			if err := e.store.Replace(ctx, mat); err != nil {
				e.logger.Warn(ctx, "write-through failed, keeping stale health", "plant", list[i].ID, "error", err)
				continue
			}
			e.sideEffects(ctx, mat, tr)
		}
		list[i] = mat
	}

	e.stream.publish(list)
	return list, nil
}

// refresh republishes the materialized collection after a mutation. The
// stream deduplicates, so a mutation that changed nothing observable does
// not reach subscribers.
func (e *Engine) refresh(ctx context.Context) {
	if _, err := e.materializeAll(ctx); err != nil {
		e.logger.Warn(ctx, "snapshot refresh failed", "error", err)
	}
}

// EditOwnedPlant replaces the record's editable fields. Identifier, creation
// time and the edge-triggered HealthySince are taken from the stored record,
// never from the caller.
func (e *Engine) EditOwnedPlant(ctx context.Context, id string, updated models.OwnedPlant) (models.OwnedPlant, error) {
	if updated.Plant.WateringFrequency <= 0 {
		return models.OwnedPlant{}, fmt.Errorf("watering frequency must be positive: %w", common.ErrValidation)
	}
	if updated.LastWatered.IsZero() {
		return models.OwnedPlant{}, fmt.Errorf("last watered time is required: %w", common.ErrValidation)
	}
	if updated.PreviousLastWatered != nil && !updated.PreviousLastWatered.Before(updated.LastWatered) {
		return models.OwnedPlant{}, fmt.Errorf("previous watering must precede last watering: %w", common.ErrValidation)
	}

	stored, err := e.store.Get(ctx, e.ownerID, id)
	if err != nil {
		return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}

	merged := updated
	merged.ID = stored.ID
	merged.OwnerID = e.ownerID
	merged.DateOfCreation = stored.DateOfCreation
	merged.HealthySince = stored.HealthySince
	merged.Plant.HealthStatus = stored.Plant.HealthStatus

	merged, tr := e.materialize(merged, e.now().UTC())
	if err := e.store.Replace(ctx, merged); err != nil {
		return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}
	if tr.changed {
		e.sideEffects(ctx, merged, tr)
	}

	e.refresh(ctx)
	return merged, nil
}

// WaterPlant records a watering event: the current LastWatered becomes
// PreviousLastWatered and wateredAt takes its place.
func (e *Engine) WaterPlant(ctx context.Context, id string, wateredAt time.Time) (models.OwnedPlant, error) {
	if wateredAt.IsZero() {
		return models.OwnedPlant{}, fmt.Errorf("watering time is required: %w", common.ErrValidation)
	}

	stored, err := e.store.Get(ctx, e.ownerID, id)
	if err != nil {
		return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}
	if !wateredAt.After(stored.LastWatered) {
		return models.OwnedPlant{}, fmt.Errorf("watering time must be after the last watering: %w", common.ErrValidation)
	}

	prev := stored.LastWatered
	stored.PreviousLastWatered = &prev
	stored.LastWatered = wateredAt

	stored, tr := e.materialize(stored, e.now().UTC())
	if err := e.store.Replace(ctx, stored); err != nil {
		return models.OwnedPlant{}, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}
	if tr.changed {
		e.sideEffects(ctx, stored, tr)
	}

	e.refresh(ctx)
	return stored, nil
}

// DeleteFromGarden removes the record and cascades to the photo blob.
// Record first, blob second: a transient dangling blob is acceptable, a
// record pointing at a deleted blob is not.
func (e *Engine) DeleteFromGarden(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, e.ownerID, id); err != nil {
		return fmt.Errorf("owner %s: %w", e.ownerID, err)
	}

	if err := e.images.Delete(ctx, e.ownerID, id); err != nil {
		// The record is gone either way; the blob will dangle until retried.
		e.logger.Warn(ctx, "photo cascade delete failed", "plant", id, "error", err)
	}

	e.refresh(ctx)
	return nil
}

// Subscribe returns a channel of materialized collection snapshots. The
// current snapshot is delivered immediately; afterwards a value arrives only
// when the materialized collection actually differs from the last delivered
// one. Slow subscribers observe the latest value, not a backlog. The
// returned cancel func detaches the subscription and is safe to call more
// than once.
func (e *Engine) Subscribe(ctx context.Context) (<-chan []models.OwnedPlant, func(), error) {
	if _, err := e.materializeAll(ctx); err != nil {
		return nil, nil, fmt.Errorf("owner %s: %w", e.ownerID, err)
	}
	ch, cancel := e.stream.subscribe()
	return ch, cancel, nil
}

// Cleanup detaches every active subscription. Idempotent, touches no stored
// data; the engine remains fully functional afterwards.
func (e *Engine) Cleanup() {
	e.stream.cleanup()
}
