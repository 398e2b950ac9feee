package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

// Sweep returns expired leases to the queue and advances every active story.
// On Postgres only one daemon at a time runs it; the others report Ran=false.
func (d *Daemon) Sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{At: d.store.Now()}
	cutoff := result.At.Add(-d.cfg.HeartbeatTimeout())
	ran, err := d.store.TryExclusive(ctx, queue.LockReclaim, func(ctx context.Context) error {
		ids, err := d.store.ReclaimStale(ctx, cutoff)
		if err != nil {
			return err
		}
		result.Reclaimed = ids
		advanced, err := d.coordinator.AdvanceActive(ctx)
		result.Advanced = advanced
		return err
	})
	result.Ran = ran
	if err != nil {
		return result, fmt.Errorf("lease sweep: %w", err)
	}
	d.lastSweep.Store(&result)
	if len(result.Reclaimed) > 0 {
		logging.WarnWithContext(d.logger, "reclaimed expired leases", "leases_reclaimed",
			logging.Int("count", len(result.Reclaimed)),
			logging.Any("job_ids", result.Reclaimed),
			logging.String("cutoff", cutoff.Format("2006-01-02T15:04:05Z07:00")),
		)
	}
	if result.Advanced > 0 {
		d.logger.Info("sweep advanced stalled stories",
			logging.String(logging.FieldEventType, "stories_advanced"),
			logging.Int("count", result.Advanced),
		)
	}
	return result, nil
}

func (d *Daemon) newScheduler(ctx context.Context) (*cron.Cron, error) {
	clog := cronLogger{logger: logging.NewComponentLogger(d.logger, "sweep")}
	scheduler := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	_, err := scheduler.AddFunc(d.cfg.Workflow.ReclaimSchedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.Sweep(ctx); err != nil {
			logging.WarnWithContext(d.logger, "lease sweep failed", "sweep_failed", logging.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule lease sweep %q: %w", d.cfg.Workflow.ReclaimSchedule, err)
	}
	return scheduler, nil
}

// cronLogger routes scheduler diagnostics through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
