package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

func (m *Manager) processJob(ctx context.Context, lane *laneState, job *queue.Job) {
	jobCtx := withJobContext(ctx, lane, job, uuid.NewString())
	logger := logging.WithContext(jobCtx, lane.logger)
	start := m.now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.Int("attempt", job.Attempts()),
		logging.Int64(logging.FieldSceneID, job.UnitID),
	)

	execErr := m.executeWithHeartbeat(jobCtx, lane, job)
	if execErr != nil && ctx.Err() != nil {
		// Shutdown: leave the job for the lease sweep.
		logger.Info("job interrupted by shutdown", logging.String(logging.FieldEventType, "job_interrupted"))
		return
	}
	// Resolution must reach the store even when shutdown begins now.
	jobCtx = context.WithoutCancel(jobCtx)
	if execErr != nil {
		lane.recordJob(job.ID, execErr)
		m.handleJobFailure(jobCtx, lane, job, execErr)
		return
	}

	if err := m.store.CompleteJob(jobCtx, job.ID, lane.workerID); err != nil {
		lane.recordJob(job.ID, err)
		if errors.Is(err, queue.ErrLeaseLost) {
			logging.WarnWithContext(logger, "job finished after its lease was reclaimed", "lease_lost",
				logging.String(logging.FieldImpact, "result kept; completion left to the new holder"),
			)
			return
		}
		logging.ErrorWithContext(logger, "failed to complete job", "job_complete_failed", logging.Error(err))
		return
	}
	lane.recordJob(job.ID, nil)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("job_duration", m.now().Sub(start)),
	)
	m.advance(jobCtx, job.ParentID)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, lane *laneState, job *queue.Job) (err error) {
	execCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		heartbeat(execCtx, m.store, logging.WithContext(ctx, lane.logger), m.heartbeatInterval, job.ID, lane.workerID, cancel)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrTransient, string(job.JobType), "execute", fmt.Sprintf("handler panic: %v", r), nil)
		}
	}()
	if lane.handler == nil {
		return services.Wrap(services.ErrConfiguration, string(job.JobType), "dispatch", "No handler registered", nil)
	}
	return lane.handler.Execute(execCtx, job)
}

func (m *Manager) advance(ctx context.Context, storyID int64) {
	if m.advancer == nil {
		return
	}
	if _, err := m.advancer.Advance(ctx, storyID); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "story advance failed", "story_advance_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the periodic sweep will retry the transition"),
		)
	}
}

func withJobContext(ctx context.Context, lane *laneState, job *queue.Job, requestID string) context.Context {
	ctx = services.WithStoryID(ctx, job.ParentID)
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithJobType(ctx, string(job.JobType))
	ctx = services.WithWorkerID(ctx, lane.workerID)
	return services.WithRequestID(ctx, requestID)
}
