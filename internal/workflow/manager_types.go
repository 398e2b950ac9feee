package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// Advancer is the coordinator surface a lane needs after resolving a job.
type Advancer interface {
	Advance(ctx context.Context, storyID int64) (queue.StoryStatus, error)
	NotifyFailure(ctx context.Context, storyID int64, message string)
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type laneState struct {
	jobType  queue.JobType
	workerID string
	handler  stage.Handler
	logger   *slog.Logger

	mu        sync.Mutex
	alive     bool
	lastTick  time.Time
	lastJobID int64
	lastErr   string
	processed int
	failed    int
}

func (l *laneState) markAlive(alive bool, now time.Time) {
	l.mu.Lock()
	l.alive = alive
	l.lastTick = now
	l.mu.Unlock()
}

func (l *laneState) tick(now time.Time) {
	l.mu.Lock()
	l.lastTick = now
	l.mu.Unlock()
}

func (l *laneState) recordJob(jobID int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastJobID = jobID
	if err != nil {
		l.lastErr = err.Error()
		l.failed++
		return
	}
	l.processed++
}

func (l *laneState) recordError(err error) {
	l.mu.Lock()
	l.lastErr = err.Error()
	l.mu.Unlock()
}
