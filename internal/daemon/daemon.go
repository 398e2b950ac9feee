package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"github.com/tiagogladstone/the-lost-archives/internal/api"
	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/pipeline"
	"github.com/tiagogladstone/the-lost-archives/internal/preflight"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/workflow"
)

// Daemon coordinates the worker lanes, the lease sweep and the HTTP API, and
// enforces single-instance execution per worker instance name.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *queue.Store
	manager     *workflow.Manager
	coordinator *pipeline.Coordinator

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	scheduler *cron.Cron
	api       *apiServer
	lastSweep atomic.Pointer[SweepResult]
}

// SweepResult records the outcome of one lease sweep.
type SweepResult struct {
	At        time.Time
	Ran       bool
	Reclaimed []int64
	Advanced  int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, manager *workflow.Manager, coordinator *pipeline.Coordinator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil || coordinator == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and coordinator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	instance := cfg.Workers.Instance
	if instance == "" {
		instance = "default"
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, fmt.Sprintf("lostarchivesd-%s.lock", instance))
	return &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		manager:     manager,
		coordinator: coordinator,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, runs preflight checks, then launches the
// worker lanes, the lease sweep and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another lostarchivesd instance holds %s", d.lockPath)
	}

	d.runPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		d.unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	scheduler, err := d.newScheduler(runCtx)
	if err != nil {
		d.manager.Stop()
		cancel()
		d.unlock()
		return err
	}

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		scheduler.Stop()
		d.manager.Stop()
		cancel()
		d.unlock()
		return err
	}
	if err := server.start(runCtx); err != nil {
		scheduler.Stop()
		d.manager.Stop()
		cancel()
		d.unlock()
		return err
	}
	scheduler.Start()

	d.cancel = cancel
	d.scheduler = scheduler
	d.api = server
	d.running.Store(true)
	d.logger.Info("lostarchives daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("driver", d.store.Driver()),
		logging.String("reclaim_schedule", d.cfg.Workflow.ReclaimSchedule),
	)
	return nil
}

// Stop stops background processing and releases the instance lock. Jobs that
// were mid-handler stay processing until a later sweep reclaims them.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.scheduler != nil {
		<-d.scheduler.Stop().Done()
		d.scheduler = nil
	}
	d.api.stop()
	d.api = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Stop()
	d.unlock()
	d.running.Store(false)
	d.logger.Info("lostarchives daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Addr returns the address the API listens on, or "" before Start.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns lanes, job stats and story counts.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.FromStatusSummary(d.manager.Status(ctx))
	status.Running = d.running.Load()
	status.PID = os.Getpid()
	status.Driver = d.store.Driver()
	status.LockFilePath = d.lockPath
	counts, err := d.store.StoryCounts(ctx)
	if err != nil {
		d.logger.Warn("failed to read story counts", logging.Error(err))
	}
	status.StoryCounts = api.MergeStoryCounts(counts)
	if last := d.lastSweep.Load(); last != nil {
		status.LastSweep = last.At.UTC().Format(time.RFC3339)
	}
	return status
}

// Health reports per-lane liveness.
func (d *Daemon) Health(ctx context.Context) (api.HealthResponse, bool) {
	return api.Health(d.manager.Lanes(ctx))
}

func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg, d.store) {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_passed"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "lanes depending on this check report unhealthy"),
		)
	}
}

func (d *Daemon) unlock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
