package workflow

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

// Start launches every lane in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if len(m.lanes) == 0 {
		return errors.New("no worker lanes configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for _, lane := range m.lanes {
		group.Go(func() error {
			return m.runLane(groupCtx, lane)
		})
	}
	m.cancel = cancel
	m.group = group
	m.running = true
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("lanes", len(m.lanes)),
		logging.Any("job_types", m.JobTypes()),
	)
	return nil
}

// Stop cancels every lane and waits for them to return. A job interrupted
// mid-handler stays processing until the lease sweep reclaims it.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, group := m.cancel, m.group
	m.running = false
	m.cancel = nil
	m.group = nil
	m.mu.Unlock()

	cancel()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("lane exited with error", logging.Error(err))
	}
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
}

// Running reports whether lanes are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) runLane(ctx context.Context, lane *laneState) error {
	lane.markAlive(true, m.now())
	defer lane.markAlive(false, m.now())
	lane.logger.Info("lane started", logging.String(logging.FieldEventType, "lane_started"))

	for {
		if ctx.Err() != nil {
			return nil
		}
		worked, err := m.runOnce(ctx, lane)
		if ctx.Err() != nil {
			return nil
		}
		wait := m.pollInterval
		switch {
		case err != nil:
			wait = m.errorInterval
		case worked:
			continue
		}
		if err := m.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// RunOnce claims and processes at most one job of jobType on the calling
// goroutine. It reports whether a job was claimed. An error means the claim
// itself failed; handler failures are resolved through the retry policy and
// not returned.
func (m *Manager) RunOnce(ctx context.Context, jobType queue.JobType) (bool, error) {
	for _, lane := range m.lanes {
		if lane.jobType == jobType {
			return m.runOnce(ctx, lane)
		}
	}
	return false, fmt.Errorf("no lane serves %s", jobType)
}

func (m *Manager) runOnce(ctx context.Context, lane *laneState) (bool, error) {
	lane.tick(m.now())
	job, err := m.store.ClaimNext(ctx, lane.jobType, lane.workerID)
	if err != nil {
		if ctx.Err() == nil {
			lane.recordError(err)
			logging.ErrorWithContext(lane.logger, "claim failed", "claim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database connectivity"),
			)
		}
		return false, err
	}
	if job == nil {
		return false, nil
	}
	m.processJob(ctx, lane, job)
	return true, nil
}
