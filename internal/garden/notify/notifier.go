// Package notify delivers watering reminders when a plant crosses into a
// band that needs attention. Delivery is best-effort: transient push errors
// are retried with exponential backoff, permanent ones give up immediately.
package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/verdora/gardensync/internal/garden/models"
	"github.com/verdora/gardensync/internal/logging"
)

// ErrUnregistered marks a permanent delivery failure: the owner has no
// registered device token anymore. Not retried.
var ErrUnregistered = errors.New("unregistered device")

const (
	maxAttempts    = 3
	initialBackoff = 1 * time.Second
	backoffCap     = 8 * time.Second
)

var needsWaterTitles = []string{
	"Time to give your plant a drink 🌱",
	"Your plant is feeling a bit thirsty 🌿",
	"Hey, your green friend needs some water 🌱",
	"Don't forget to water your plant today 🌿",
	"A little hydration goes a long way 🌱",
	"Your plant could use a refreshing sip 🌿",
	"It's watering time for your plant 🌱",
	"Your plant's leaves are calling for water 🌿",
	"Keep your plant happy — water it now 🌱",
	"Looks like your plant needs a bit of care 🌿",
}

var severelyDryTitles = []string{
	"Your plant is really thirsty ⚠️",
	"Emergency hydration needed 🚨",
	"Your plant is drying out fast ⚠️",
	"Uh oh...your plant needs water ASAP 🚨",
}

// Notification is a single push message.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher sends a notification to whatever devices the owner has registered.
type Pusher interface {
	Push(ctx context.Context, ownerID string, n Notification) error
}

// Notifier composes and delivers watering reminders.
type Notifier struct {
	pusher Pusher
	logger logging.Logger

	// pick selects a title index; seam for deterministic tests.
	pick func(n int) int

	// newBackoff builds the retry schedule; seam for fast tests.
	newBackoff func() retry.Backoff
}

func NewNotifier(pusher Pusher, logger logging.Logger) *Notifier {
	return &Notifier{
		pusher: pusher,
		logger: logger,
		pick:   rand.IntN,
		newBackoff: func() retry.Backoff {
			b := retry.WithCappedDuration(backoffCap, retry.NewExponential(initialBackoff))
			return retry.WithMaxRetries(maxAttempts-1, b)
		},
	}
}

// WaterReminder sends a reminder for the given plant and band. Only
// NEEDS_WATER and SEVERELY_DRY produce a message; other bands are ignored.
// The returned error is informational: callers log it and move on.
func (n *Notifier) WaterReminder(ctx context.Context, ownerID, plantID, plantName string, status models.HealthStatus) error {
	var titles []string
	var body string
	switch status {
	case models.StatusNeedsWater:
		titles = needsWaterTitles
		body = fmt.Sprintf("%s needs water!", plantName)
	case models.StatusSeverelyDry:
		titles = severelyDryTitles
		body = fmt.Sprintf("%s is severely dry and needs immediate watering to recover!", plantName)
	default:
		return nil
	}

	msg := Notification{
		Title: titles[n.pick(len(titles))],
		Body:  body,
		Data: map[string]string{
			"type":    "WATER_PLANT",
			"plantId": plantID,
		},
	}

	err := retry.Do(ctx, n.newBackoff(), func(ctx context.Context) error {
		err := n.pusher.Push(ctx, ownerID, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnregistered) {
			return err
		}
		n.logger.Warn(ctx, "push failed, will retry", "owner", ownerID, "plant", plantID, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		n.logger.Error(ctx, "watering reminder not delivered", "owner", ownerID, "plant", plantID, "error", err)
		return fmt.Errorf("water reminder for plant %s: %w", plantID, err)
	}
	return nil
}
