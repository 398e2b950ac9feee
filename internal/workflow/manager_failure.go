package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

func (m *Manager) handleJobFailure(ctx context.Context, lane *laneState, job *queue.Job, jobErr error) {
	logger := logging.WithContext(ctx, lane.logger)
	kind := services.Classify(jobErr)
	cause := strings.TrimSpace(jobErr.Error())
	decision := m.policy.Decide(job, kind)

	if decision.Action == queue.ActionRequeue {
		next, err := m.store.RequeueJob(ctx, job.ID, lane.workerID, decision.Delay, cause)
		if err != nil {
			m.logResolveError(logger, "requeue", err)
			return
		}
		logging.WarnWithContext(logger, "job failed; retry scheduled", "job_retry_scheduled",
			logging.Error(jobErr),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Int("retry", job.RetryCount+1),
			logging.Int("max_retries", job.MaxRetries),
			logging.Duration("delay", decision.Delay),
			logging.Time("next_retry_at", next),
		)
		return
	}

	result, err := m.store.FailJob(ctx, job.ID, lane.workerID, cause)
	if err != nil {
		m.logResolveError(logger, "fail", err)
		return
	}
	logging.ErrorWithContext(logger, "job failed permanently", "job_failed",
		logging.Error(jobErr),
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.Int("attempts", result.Attempts),
		logging.Bool("story_failed", result.StoryFailed),
		logging.String(logging.FieldImpact, "story moved to failed; run retry after fixing the cause"),
	)
	if result.StoryFailed && m.advancer != nil {
		m.advancer.NotifyFailure(ctx, result.StoryID, result.Message)
	}
}

func (m *Manager) logResolveError(logger *slog.Logger, action string, err error) {
	if errors.Is(err, queue.ErrLeaseLost) {
		logger.Warn("lease reclaimed before failure could be recorded",
			logging.String(logging.FieldEventType, "lease_lost"),
			logging.String("action", action),
		)
		return
	}
	logger.Error("failed to record job failure",
		logging.String(logging.FieldEventType, "job_resolve_failed"),
		logging.String("action", action),
		logging.Error(err),
	)
}
