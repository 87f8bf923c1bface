package streaks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verdora/gardensync/internal/common"
	"github.com/verdora/gardensync/internal/garden/repositories/achievements"
	"github.com/verdora/gardensync/internal/logging"
)

// Achievement level ladder. An owner's progress value is mapped onto these
// thresholds; crossing one raises the level, up to LevelCount.
var thresholds = map[string][]int64{
	achievements.TypePlantsNumber:  {1, 3, 5, 10, 15, 20, 30, 40, 50},
	achievements.TypeFriendsNumber: {1, 3, 5, 10, 15, 20, 25, 30, 40},
	achievements.TypeHealthyStreak: {1, 3, 5, 7, 10, 20, 30, 40, 50},
}

const LevelCount = 10

// ComputeLevel maps a progress value onto the threshold ladder for the given
// achievement type. Values below the first threshold are level 1.
func ComputeLevel(achievementType string, value int64) int {
	ladder, ok := thresholds[achievementType]
	if !ok {
		return 1
	}
	for i, t := range ladder {
		if value < t {
			return 1 + i
		}
	}
	return LevelCount
}

// Service implements Port on top of the achievements repository.
type Service struct {
	repo   achievements.Repository
	logger logging.Logger
}

func NewService(repo achievements.Repository, logger logging.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// OnHealthyBandEnter marks the start of a care streak. The streak value
// itself grows with time and is recorded by RecordStreak sweeps, so entry
// only needs to be observable.
func (s *Service) OnHealthyBandEnter(ctx context.Context, ownerID, plantID string) error {
	s.logger.Info(ctx, "plant entered healthy band", "owner", ownerID, "plant", plantID)
	return nil
}

// OnHealthyBandExit marks the end of a care streak.
func (s *Service) OnHealthyBandExit(ctx context.Context, ownerID, plantID string) error {
	s.logger.Info(ctx, "plant left healthy band", "owner", ownerID, "plant", plantID)
	return nil
}

// RecordStreak folds a plant's current healthy duration into the owner's
// HEALTHY_STREAK progress. The stored value is the maximum whole-day streak
// ever observed; shorter streaks leave it untouched.
func (s *Service) RecordStreak(ctx context.Context, ownerID string, healthySince, now time.Time) error {
	days := int64(now.Sub(healthySince).Hours() / 24)
	if days <= 0 {
		return nil
	}

	before, err := s.repo.GetValue(ctx, ownerID, achievements.TypeHealthyStreak)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("streak for owner %s: %w", ownerID, err)
	}
	if days <= before {
		return nil
	}

	if err := s.repo.RecordValue(ctx, ownerID, achievements.TypeHealthyStreak, days); err != nil {
		return fmt.Errorf("streak for owner %s: %w", ownerID, err)
	}

	if after := ComputeLevel(achievements.TypeHealthyStreak, days); after > ComputeLevel(achievements.TypeHealthyStreak, before) {
		s.logger.Info(ctx, "achievement level reached",
			"owner", ownerID, "type", achievements.TypeHealthyStreak, "level", after)
	}
	return nil
}

// RecordPlantCount folds the owner's current plant count into the
// PLANTS_NUMBER progress.
func (s *Service) RecordPlantCount(ctx context.Context, ownerID string, count int) error {
	if count <= 0 {
		return nil
	}
	if err := s.repo.RecordValue(ctx, ownerID, achievements.TypePlantsNumber, int64(count)); err != nil {
		return fmt.Errorf("plant count for owner %s: %w", ownerID, err)
	}
	return nil
}
