// Package streaks feeds the gamification side of the garden: it is notified
// when a plant enters or leaves the healthy band and maintains the owner's
// continuous-care streak achievement.
package streaks

import "context"

// Port is notified on healthy-band boundary crossings. Calls are
// fire-and-forget from the engine's perspective: an error is logged by the
// caller and never fails the plant mutation that triggered it.
type Port interface {
	OnHealthyBandEnter(ctx context.Context, ownerID, plantID string) error
	OnHealthyBandExit(ctx context.Context, ownerID, plantID string) error
}
