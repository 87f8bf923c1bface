// Package achievements persists gamification progress values, one row per
// owner and achievement type. The stored value only ever grows.
package achievements

import "context"

// Achievement types tracked for each owner.
const (
	TypePlantsNumber  = "PLANTS_NUMBER"
	TypeFriendsNumber = "FRIENDS_NUMBER"
	TypeHealthyStreak = "HEALTHY_STREAK"
)

type Repository interface {
	// GetValue returns the stored progress value, or common.ErrNotFound if
	// the owner has no progress for the type yet.
	GetValue(ctx context.Context, ownerID, achievementType string) (int64, error)

	// RecordValue stores value if it exceeds the current progress; smaller
	// values are ignored so progress never regresses.
	RecordValue(ctx context.Context, ownerID, achievementType string, value int64) error
}
