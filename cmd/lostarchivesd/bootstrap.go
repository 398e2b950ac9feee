package main

import (
	"fmt"
	"log/slog"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/daemon"
	"github.com/tiagogladstone/the-lost-archives/internal/notifications"
	"github.com/tiagogladstone/the-lost-archives/internal/pipeline"
	"github.com/tiagogladstone/the-lost-archives/internal/production"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
	"github.com/tiagogladstone/the-lost-archives/internal/workflow"
)

// buildDaemon wires the store-backed collaborators into a daemon. registry
// may be nil, in which case the production handlers are used.
func buildDaemon(cfg *config.Config, store *queue.Store, registry stage.Registry, logger *slog.Logger) (*daemon.Daemon, *workflow.Manager, error) {
	if cfg == nil || store == nil {
		return nil, nil, fmt.Errorf("build daemon: config and store are required")
	}
	coordinator := pipeline.NewCoordinator(cfg, store, notifications.NewService(cfg), logger)
	if registry == nil {
		registry = production.NewRegistry(cfg, store, logger)
	}
	manager := workflow.NewManager(cfg, store, registry, coordinator, logger)
	if len(manager.JobTypes()) == 0 {
		return nil, nil, fmt.Errorf("build daemon: workers.job_types %v selects no registered handler", cfg.Workers.JobTypes)
	}
	d, err := daemon.New(cfg, store, manager, coordinator, logger)
	if err != nil {
		return nil, nil, err
	}
	return d, manager, nil
}
