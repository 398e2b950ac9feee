package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

// heartbeat refreshes the lease on jobID every interval until ctx ends. When
// the lease turns out to be lost it calls onLost and stops.
func heartbeat(ctx context.Context, store *queue.Store, logger *slog.Logger, interval time.Duration, jobID int64, workerID string, onLost func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := store.UpdateHeartbeat(ctx, jobID, workerID)
			switch {
			case err == nil:
			case errors.Is(err, queue.ErrLeaseLost):
				logging.WarnWithContext(logger, "lease lost during execution", "lease_lost",
					logging.String(logging.FieldImpact, "handler cancelled; another worker owns the job"),
				)
				onLost()
				return
			case errors.Is(err, context.Canceled):
				return
			default:
				logger.Warn("heartbeat update failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_failed"),
				)
			}
		}
	}
}
