package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// KnownJobTypes lists the job types a worker lane may serve. Kept here so
// config validation does not depend on the store package.
var KnownJobTypes = []string{
	"generate_script",
	"generate_image",
	"generate_audio",
	"translate_unit",
	"render_output",
	"generate_thumbnails",
	"generate_metadata",
	"upload_publish",
	"regenerate_thumbnail",
}

var (
	supportedStyles       = []string{"cinematic", "documentary", "illustrated", "noir", "watercolor"}
	supportedAspectRatios = []string{"16:9", "9:16", "1:1"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or set DATABASE_URL)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	if _, err := cron.ParseStandard(c.Workflow.ReclaimSchedule); err != nil {
		return fmt.Errorf("workflow.reclaim_schedule %q is invalid: %w", c.Workflow.ReclaimSchedule, err)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.BaseDelaySeconds <= 0 {
		return errors.New("retry.base_delay_seconds must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	for _, jobType := range c.Workers.JobTypes {
		if !contains(KnownJobTypes, jobType) {
			return fmt.Errorf("workers.job_types: unknown job type %q", jobType)
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if !contains(supportedStyles, c.Pipeline.Style) {
		return fmt.Errorf("pipeline.style %q is not supported (use one of %s)", c.Pipeline.Style, strings.Join(supportedStyles, ", "))
	}
	if !contains(supportedAspectRatios, c.Pipeline.AspectRatio) {
		return fmt.Errorf("pipeline.aspect_ratio %q is not supported (use one of %s)", c.Pipeline.AspectRatio, strings.Join(supportedAspectRatios, ", "))
	}
	return ensurePositiveMap(map[string]int{
		"pipeline.target_duration_minutes": c.Pipeline.TargetDurationMinutes,
		"pipeline.thumbnail_options":       c.Pipeline.ThumbnailOptions,
		"pipeline.title_options":           c.Pipeline.TitleOptions,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}

// ValidStyle reports whether style is a supported visual style.
func ValidStyle(style string) bool {
	return contains(supportedStyles, style)
}

// ValidAspectRatio reports whether ratio is a supported output aspect ratio.
func ValidAspectRatio(ratio string) bool {
	return contains(supportedAspectRatios, ratio)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func contains(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
