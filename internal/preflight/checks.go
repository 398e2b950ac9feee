package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services/llm"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, cfg *config.Config) Result {
	const name = "LLM"
	if cfg == nil || strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewConfiguredClient(cfg, llm.WithRetryMaxAttempts(1))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckMedia verifies that the media service answers its health endpoint.
func CheckMedia(ctx context.Context, cfg *config.Config) Result {
	const name = "Media service"
	if cfg == nil || strings.TrimSpace(cfg.Media.BaseURL) == "" {
		return Result{Name: name, Detail: "base URL missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := media.NewConfiguredClient(cfg).HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError("media service", err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDatabase opens no connection of its own; it reports the health of an
// already opened store.
func CheckDatabase(ctx context.Context, store *queue.Store) Result {
	const name = "Database"
	if store == nil {
		return Result{Name: name, Detail: "store unavailable"}
	}
	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !health.DatabaseReadable {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreadable: %s", health.Driver, health.Error)}
	}
	if len(health.MissingTables) > 0 {
		return Result{Name: name, Detail: "missing tables: " + strings.Join(health.MissingTables, ", ")}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s schema v%d, %d jobs", health.Driver, health.SchemaVersion, health.TotalJobs),
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeError produces a human-readable summary for health check failures.
func summarizeError(service string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", service)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", service)
	}
	return err.Error()
}
