package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdora/gardensync/internal/common"
	"github.com/verdora/gardensync/internal/garden/health"
	"github.com/verdora/gardensync/internal/garden/images"
	"github.com/verdora/gardensync/internal/garden/models"
	"github.com/verdora/gardensync/internal/garden/repositories/plants"
	"github.com/verdora/gardensync/internal/logging"
)

const (
	day       = 24 * time.Hour
	testOwner = "owner-1"
)

var t0 = time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)

type fakeStreakPort struct {
	mu     sync.Mutex
	enters []string
	exits  []string

	// err is returned from both callbacks once set.
	err error
}

func (f *fakeStreakPort) OnHealthyBandEnter(ctx context.Context, ownerID, plantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enters = append(f.enters, plantID)
	return f.err
}

func (f *fakeStreakPort) OnHealthyBandExit(ctx context.Context, ownerID, plantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exits = append(f.exits, plantID)
	return f.err
}

func (f *fakeStreakPort) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStreakPort) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enters), len(f.exits)
}

type fixture struct {
	engine *Engine
	repo   *plants.InMemoryRepository
	blobs  *images.InMemoryStore
	port   *fakeStreakPort

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  plants.NewInMemoryRepository(),
		blobs: images.NewInMemoryStore(),
		port:  &fakeStreakPort{},
		now:   t0,
	}
	f.repo.WithClock(f.clock)
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	f.engine = New(testOwner, f.repo, f.blobs, f.port, nil, logger).WithClock(f.clock)
	return f
}

func newPlant(name string, freq time.Duration) models.Plant {
	return models.Plant{
		Name:              name,
		Species:           "Monstera deliciosa",
		Description:       "Living room",
		WateringFrequency: freq,
	}
}

func TestSaveToGarden_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plant := newPlant("Momo", 7*day)
	id := f.engine.NewID()

	saved, err := f.engine.SaveToGarden(ctx, plant, id, t0)
	require.NoError(t, err)

	got, err := f.engine.GetOwnedPlant(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, plant.Name, got.Plant.Name)
	assert.Equal(t, plant.Species, got.Plant.Species)
	assert.Equal(t, plant.Description, got.Plant.Description)
	assert.Equal(t, plant.WateringFrequency, got.Plant.WateringFrequency)
	assert.True(t, got.LastWatered.Equal(t0))
	assert.Nil(t, got.PreviousLastWatered)
	assert.True(t, got.DateOfCreation.Equal(t0))

	want := health.Classify(t0, plant.WateringFrequency, nil, t0)
	assert.Equal(t, want, got.Plant.HealthStatus)
	assert.Equal(t, want.Description(), got.Plant.HealthStatusDescription)
	assert.True(t, saved.Equal(got))
}

func TestSaveToGarden_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SaveToGarden(ctx, newPlant("Momo", 0), "p1", t0)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.engine.SaveToGarden(ctx, newPlant("Momo", day), "p1", time.Time{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSaveToGarden_UploadsPendingPhotoBeforeRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	photo := filepath.Join(t.TempDir(), "momo.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg-bytes"), 0o600))

	plant := newPlant("Momo", 7*day)
	plant.PendingPhotoPath = photo

	saved, err := f.engine.SaveToGarden(ctx, plant, "p1", t0)
	require.NoError(t, err)
	assert.Equal(t, "mem://garden/owner-1/p1", saved.Plant.PhotoURL)
	assert.Empty(t, saved.Plant.PendingPhotoPath)

	blob, ok := f.blobs.Get(testOwner, "p1")
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg-bytes"), blob)

	// The stored record references the uploaded location.
	raw, err := f.repo.Get(ctx, testOwner, "p1")
	require.NoError(t, err)
	assert.Equal(t, saved.Plant.PhotoURL, raw.Plant.PhotoURL)
}

func TestSaveToGarden_UnreadablePhotoFailsBeforeRecordExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plant := newPlant("Momo", 7*day)
	plant.PendingPhotoPath = filepath.Join(t.TempDir(), "missing.jpg")

	_, err := f.engine.SaveToGarden(ctx, plant, "p1", t0)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.repo.Get(ctx, testOwner, "p1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetOwnedPlant_NotFoundNamesID(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.GetOwnedPlant(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")
	assert.Contains(t, err.Error(), testOwner)
}

func TestGetAllOwnedPlants_SurfacesSilentTimeDecay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SaveToGarden(ctx, newPlant("Momo", day), "p1", t0)
	require.NoError(t, err)

	got, err := f.engine.GetOwnedPlant(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusHealthy, got.Plant.HealthStatus)
	require.NotNil(t, got.HealthySince)

	// No writes: the plant silently crosses past the NEEDS_WATER boundary.
	f.advance(26 * time.Hour)

	list, err := f.engine.GetAllOwnedPlants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusNeedsWater, list[0].Plant.HealthStatus)
	assert.Nil(t, list[0].HealthySince)

	// The transition was written through to the store.
	raw, err := f.repo.Get(ctx, testOwner, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsWater, raw.Plant.HealthStatus)
	assert.Nil(t, raw.HealthySince)
}

// flakyStore wraps the in-memory repository and fails Replace for one id.
type flakyStore struct {
	*plants.InMemoryRepository

	mu     sync.Mutex
	failID string
}

func (s *flakyStore) failReplaceFor(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failID = id
}

func (s *flakyStore) Replace(ctx context.Context, updated models.OwnedPlant) error {
	s.mu.Lock()
	failID := s.failID
	s.mu.Unlock()
	if updated.ID == failID {
		return fmt.Errorf("update plant: %w: connection reset", common.ErrStoreUnavailable)
	}
	return s.InMemoryRepository.Replace(ctx, updated)
}

func TestGetAllOwnedPlants_WriteThroughFailureKeepsStaleRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	store := &flakyStore{InMemoryRepository: f.repo}
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	eng := New(testOwner, store, f.blobs, f.port, nil, logger).WithClock(f.clock)

	_, err := eng.SaveToGarden(ctx, newPlant("Momo", day), "p1", t0)
	require.NoError(t, err)
	_, err = eng.SaveToGarden(ctx, newPlant("Fifi", day), "p2", t0)
	require.NoError(t, err)

	// Both plants silently decay past the NEEDS_WATER boundary, but
	// persisting the recomputation fails for the first one.
	store.failReplaceFor("p1")
	f.advance(26 * time.Hour)

	list, err := eng.GetAllOwnedPlants(ctx)
	require.NoError(t, err, "one failing record must not suppress the list")
	require.Len(t, list, 2)

	// The failing record keeps its stored health; the other is fresh.
	assert.Equal(t, models.StatusHealthy, list[0].Plant.HealthStatus)
	assert.NotNil(t, list[0].HealthySince)
	assert.Equal(t, models.StatusNeedsWater, list[1].Plant.HealthStatus)
	assert.Nil(t, list[1].HealthySince)

	raw, err := f.repo.Get(ctx, testOwner, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusHealthy, raw.Plant.HealthStatus)

	// Side effects are skipped for the failing record: only one exit fired,
	// and the transition is re-detected once persistence recovers.
	_, exits := f.port.counts()
	assert.Equal(t, 1, exits)

	store.failReplaceFor("")
	list, err = eng.GetAllOwnedPlants(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsWater, list[0].Plant.HealthStatus)

	_, exits = f.port.counts()
	assert.Equal(t, 2, exits)
}

func TestStreakPortFailureNeverRollsBackMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.port.failWith(errors.New("streak backend down"))

	saved, err := f.engine.SaveToGarden(ctx, newPlant("Momo", day), "p1", t0)
	require.NoError(t, err, "port failure must not fail the save")
	require.NotNil(t, saved.HealthySince)

	// The committed record keeps its new HealthySince despite the error.
	raw, err := f.repo.Get(ctx, testOwner, "p1")
	require.NoError(t, err)
	require.NotNil(t, raw.HealthySince)
	assert.True(t, raw.HealthySince.Equal(*saved.HealthySince))

	// Decay out of the band with the port still failing: the read succeeds
	// and the write-through stands.
	f.advance(26 * time.Hour)
	got, err := f.engine.GetOwnedPlant(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsWater, got.Plant.HealthStatus)
	assert.Nil(t, got.HealthySince)

	raw, err = f.repo.Get(ctx, testOwner, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsWater, raw.Plant.HealthStatus)
	assert.Nil(t, raw.HealthySince)

	// The port was still invoked on both crossings.
	enters, exits := f.port.counts()
	assert.Equal(t, 1, enters)
	assert.Equal(t, 1, exits)
}

func TestHealthySinceIsEdgeTriggered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SaveToGarden(ctx, newPlant("Momo", 10*day), "p1", t0)
	require.NoError(t, err)

	enters, exits := f.port.counts()
	assert.Equal(t, 1, enters)
	assert.Equal(t, 0, exits)

	first, err := f.engine.GetOwnedPlant(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, first.HealthySince)
	since := *first.HealthySince

	// Repeated reads inside the band: no new events, HealthySince untouched.
	f.advance(2 * day)
	for i := 0; i < 3; i++ {
		got, err := f.engine.GetOwnedPlant(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, got.HealthySince)
		assert.True(t, got.HealthySince.Equal(since))
	}
	enters, exits = f.port.counts()
	assert.Equal(t, 1, enters)
	assert.Equal(t, 0, exits)

	// Decay out of the band: exactly one exit.
	f.advance(9 * day)
	_, err = f.engine.GetAllOwnedPlants(ctx)
	require.NoError(t, err)
	_, err = f.engine.GetAllOwnedPlants(ctx)
	require.NoError(t, err)

	enters, exits = f.port.counts()
	assert.Equal(t, 1, enters)
	assert.Equal(t, 1, exits)
}

func TestWaterPlant_ShiftsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	watered := t0.Add(-5 * day)
	_, err := f.engine.SaveToGarden(ctx, newPlant("Momo", 10*day), "p1", watered)
	require.NoError(t, err)

	got, err := f.engine.WaterPlant(ctx, "p1", t0)
	require.NoError(t, err)

	require.NotNil(t, got.PreviousLastWatered)
	assert.True(t, got.PreviousLastWatered.Equal(watered))
	assert.True(t, got.LastWatered.Equal(t0))

	// Re-watered at 50% of the cycle: the overwatering override kicks in
	// even though dryness alone reads freshly watered.
	assert.Equal(t, models.StatusOverwatered, got.Plant.HealthStatus)
	assert.Nil(t, got.HealthySince)

	_, exits := f.port.counts()
	assert.Equal(t, 1, exits)
}

func TestWaterPlant_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SaveToGarden(ctx, newPlant("Momo", 10*day), "p1", t0)
	require.NoError(t, err)

	_, err = f.engine.WaterPlant(ctx, "p1", time.Time{})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.engine.WaterPlant(ctx, "p1", t0.Add(-time.Hour))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.engine.WaterPlant(ctx, "ghost", t0.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEditOwnedPlant_PreservesImmutableFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SaveToGarden(ctx, newPlant("Momo", 10*day), "p1", t0)
	require.NoError(t, err)

	got, err := f.engine.GetOwnedPlant(ctx, "p1")
	require.NoError(t, err)

	edited := got
	edited.Plant.Description = "Moved to the bedroom"
	edited.DateOfCreation = t0.Add(30 * day) // must be ignored
	ts := t0.Add(-time.Hour)
	edited.HealthySince = &ts // must be ignored, edge-triggered only

	updated, err := f.engine.EditOwnedPlant(ctx, "p1", edited)
	require.NoError(t, err)
	assert.Equal(t, "Moved to the bedroom", updated.Plant.Description)
	assert.True(t, updated.DateOfCreation.Equal(t0))
	require.NotNil(t, updated.HealthySince)
	assert.True(t, updated.HealthySince.Equal(*got.HealthySince))
}

func TestDeleteFromGarden_CascadesToPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	photo := filepath.Join(t.TempDir(), "momo.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg-bytes"), 0o600))

	plant := newPlant("Momo", 7*day)
	plant.PendingPhotoPath = photo
	_, err := f.engine.SaveToGarden(ctx, plant, "p1", t0)
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteFromGarden(ctx, "p1"))

	_, ok := f.blobs.Get(testOwner, "p1")
	assert.False(t, ok, "photo blob must be gone after cascade delete")

	list, err := f.engine.GetAllOwnedPlants(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.engine.DeleteFromGarden(ctx, "p1")
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Contains(t, err.Error(), "p1")
}

func TestCleanup_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.SaveToGarden(ctx, newPlant("Momo", 7*day), "p1", t0)
	require.NoError(t, err)

	_, cancel, err := f.engine.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < 5; i++ {
		f.engine.Cleanup()
	}

	// Stored data untouched, engine fully functional.
	list, err := f.engine.GetAllOwnedPlants(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	ch, cancel2, err := f.engine.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel2()

	select {
	case snap := <-ch:
		assert.Len(t, snap, 1)
	default:
		t.Fatal("new subscriber after cleanup not primed")
	}
}
