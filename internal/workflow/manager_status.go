package workflow

import (
	"context"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// LaneStatus is a snapshot of one worker lane.
type LaneStatus struct {
	JobType   queue.JobType `json:"job_type"`
	WorkerID  string        `json:"worker_id"`
	Alive     bool          `json:"alive"`
	LastTick  time.Time     `json:"last_tick"`
	LastJobID int64         `json:"last_job_id,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Health    stage.Health  `json:"health"`
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running  bool                                      `json:"running"`
	Lanes    []LaneStatus                              `json:"lanes"`
	JobStats map[queue.JobType]map[queue.JobStatus]int `json:"job_stats"`
}

// Lanes returns a snapshot of every lane without touching the store.
func (m *Manager) Lanes(ctx context.Context) []LaneStatus {
	statuses := make([]LaneStatus, 0, len(m.lanes))
	for _, lane := range m.lanes {
		lane.mu.Lock()
		status := LaneStatus{
			JobType:   lane.jobType,
			WorkerID:  lane.workerID,
			Alive:     lane.alive,
			LastTick:  lane.lastTick,
			LastJobID: lane.lastJobID,
			LastError: lane.lastErr,
			Processed: lane.processed,
			Failed:    lane.failed,
		}
		lane.mu.Unlock()
		if lane.handler != nil {
			status.Health = lane.handler.HealthCheck(ctx)
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Status returns lane snapshots and job counts.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	summary := StatusSummary{Running: m.Running(), Lanes: m.Lanes(ctx)}
	stats, err := m.store.JobStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}
	summary.JobStats = stats
	return summary
}
