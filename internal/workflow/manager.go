package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// Manager runs one worker lane per served job type.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	advancer Advancer
	logger   *slog.Logger
	policy   queue.RetryPolicy

	pollInterval      time.Duration
	errorInterval     time.Duration
	heartbeatInterval time.Duration

	now      func() time.Time
	sleep    Sleeper
	hostname string

	lanes []*laneState

	mu      sync.RWMutex
	running bool
	cancel  func()
	group   *errgroup.Group
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock replaces the wall clock used for lane bookkeeping.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSleeper replaces the idle and error-backoff wait.
func WithSleeper(sleep Sleeper) ManagerOption {
	return func(m *Manager) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

// WithHostname overrides the host component of worker ids.
func WithHostname(host string) ManagerOption {
	return func(m *Manager) {
		if host = strings.TrimSpace(host); host != "" {
			m.hostname = host
		}
	}
}

// NewManager builds a manager with lanes for every handler in registry that
// [workers] job_types enables. An empty job_types list serves every type.
func NewManager(cfg *config.Config, store *queue.Store, registry stage.Registry, advancer Advancer, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		advancer: advancer,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		policy: queue.RetryPolicy{
			BaseDelay:                cfg.RetryBaseDelay(),
			FailPermanentImmediately: cfg.Retry.FailPermanentImmediately,
		},
		pollInterval:      seconds(cfg.Workflow.QueuePollInterval, 5*time.Second),
		errorInterval:     seconds(cfg.Workflow.ErrorRetryInterval, 10*time.Second),
		heartbeatInterval: seconds(cfg.Workflow.HeartbeatInterval, 15*time.Second),
		now:               time.Now,
		sleep:             sleepContext,
	}
	if host, err := os.Hostname(); err == nil {
		m.hostname = host
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hostname == "" {
		m.hostname = "localhost"
	}

	enabled := make(map[queue.JobType]bool, len(cfg.Workers.JobTypes))
	for _, raw := range cfg.Workers.JobTypes {
		if jobType, ok := queue.ParseJobType(raw); ok {
			enabled[jobType] = true
		}
	}
	for _, jobType := range registry.JobTypes() {
		if len(enabled) > 0 && !enabled[jobType] {
			continue
		}
		workerID := m.workerID(jobType)
		m.lanes = append(m.lanes, &laneState{
			jobType:  jobType,
			workerID: workerID,
			handler:  registry[jobType],
			logger:   m.laneLogger(jobType, workerID),
		})
	}
	return m
}

// workerID is <instance>-<host>-<pid>-<job_type>.
func (m *Manager) workerID(jobType queue.JobType) string {
	instance := strings.TrimSpace(m.cfg.Workers.Instance)
	if instance == "" {
		instance = "default"
	}
	return fmt.Sprintf("%s-%s-%d-%s", instance, m.hostname, os.Getpid(), jobType)
}

// JobTypes lists the job types this manager serves, in pipeline order.
func (m *Manager) JobTypes() []queue.JobType {
	types := make([]queue.JobType, 0, len(m.lanes))
	for _, lane := range m.lanes {
		types = append(types, lane.jobType)
	}
	return types
}

func seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}
