package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/notifications"
	"github.com/tiagogladstone/the-lost-archives/internal/pipeline"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger writes warnings and above to stderr so command output stays clean.
func (c *commandContext) logger() *slog.Logger {
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withStore opens the job store for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withCoordinator opens the store and builds the coordinator that applies
// operator actions.
func (c *commandContext) withCoordinator(fn func(*queue.Store, *pipeline.Coordinator) error) error {
	return c.withStore(func(cfg *config.Config, store *queue.Store) error {
		coord := pipeline.NewCoordinator(cfg, store, notifications.NewService(cfg), c.logger())
		return fn(store, coord)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseID(kind, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, value)
	}
	return id, nil
}

// explainActionError turns state conflicts into operator-facing hints.
func explainActionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrNotFound):
		return fmt.Errorf("%w (check the id with `lostarchives story list`)", err)
	case errors.Is(err, queue.ErrInvalidState):
		return fmt.Errorf("%w (see `lostarchives story show` for the current stage)", err)
	default:
		return err
	}
}
