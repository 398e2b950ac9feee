package preflight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// DaemonHealth mirrors the daemon's /health payload.
type DaemonHealth struct {
	Status  string          `json:"status"`
	Workers map[string]bool `json:"workers"`
}

// FetchDaemonHealth queries a running daemon at bind (host:port).
func FetchDaemonHealth(ctx context.Context, bind string) (DaemonHealth, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return DaemonHealth{}, fmt.Errorf("api bind address not configured")
	}
	base := bind
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, strings.TrimRight(base, "/")+"/health", nil)
	if err != nil {
		return DaemonHealth{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return DaemonHealth{}, err
	}
	defer resp.Body.Close()
	var health DaemonHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return DaemonHealth{}, fmt.Errorf("decode daemon health (HTTP %d): %w", resp.StatusCode, err)
	}
	return health, nil
}

// CheckDaemon summarizes the lane health of a running daemon.
func CheckDaemon(ctx context.Context, bind string) Result {
	const name = "Daemon"
	health, err := FetchDaemonHealth(ctx, bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("not reachable at %s (%v)", bind, err)}
	}
	var down []string
	for lane, ok := range health.Workers {
		if !ok {
			down = append(down, lane)
		}
	}
	sort.Strings(down)
	if len(down) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%d/%d lanes down: %s", len(down), len(health.Workers), strings.Join(down, ", "))}
	}
	return Result{Name: name, Passed: health.Status == "healthy", Detail: fmt.Sprintf("%d lanes alive", len(health.Workers))}
}
