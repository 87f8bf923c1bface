package notify

import (
	"context"

	"github.com/verdora/gardensync/internal/logging"
)

// LogPusher writes notifications to the log instead of a push backend.
// Used when no device registry is configured.
type LogPusher struct {
	logger logging.Logger
}

func NewLogPusher(logger logging.Logger) *LogPusher {
	return &LogPusher{logger: logger}
}

func (p *LogPusher) Push(ctx context.Context, ownerID string, n Notification) error {
	p.logger.Info(ctx, "notification",
		"owner", ownerID, "title", n.Title, "body", n.Body, "data", n.Data)
	return nil
}
