package workflow

import (
	"log/slog"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

func (m *Manager) laneLogger(jobType queue.JobType, workerID string) *slog.Logger {
	return m.logger.With(
		logging.String("lane", string(jobType)),
		logging.String(logging.FieldJobType, string(jobType)),
		logging.String(logging.FieldWorkerID, workerID),
	)
}
