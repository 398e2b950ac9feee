package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiagogladstone/the-lost-archives/internal/api"
	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/preflight"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

type statusReport struct {
	Checks      []preflight.Result `json:"checks"`
	Daemon      preflight.Result   `json:"daemon"`
	Lanes       map[string]bool    `json:"lanes,omitempty"`
	StoryCounts map[string]int     `json:"storyCounts"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Run preflight checks and show daemon lane health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				report := statusReport{
					Checks: preflight.RunAll(cmd.Context(), cfg, store),
					Daemon: preflight.CheckDaemon(cmd.Context(), cfg.API.Bind),
				}
				if health, err := preflight.FetchDaemonHealth(cmd.Context(), cfg.API.Bind); err == nil {
					report.Lanes = health.Workers
				}
				counts, err := store.StoryCounts(cmd.Context())
				if err != nil {
					return err
				}
				report.StoryCounts = api.MergeStoryCounts(counts)

				if jsonMode {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderStatusReport(report, shouldColorize(out)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}

func renderStatusReport(report statusReport, colorize bool) string {
	var lines []string

	lines = append(lines, renderSectionHeader("Preflight", colorize)...)
	for _, check := range report.Checks {
		lines = append(lines, renderStatusLine(check.Name, checkKind(check), check.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	daemonKind := checkKind(report.Daemon)
	if !report.Daemon.Passed && report.Lanes == nil {
		daemonKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Daemon", daemonKind, report.Daemon.Detail, colorize))
	lanes := make([]string, 0, len(report.Lanes))
	for lane := range report.Lanes {
		lanes = append(lanes, lane)
	}
	sort.Strings(lanes)
	for _, lane := range lanes {
		kind, message := statusOK, "alive"
		if !report.Lanes[lane] {
			kind, message = statusError, "down"
		}
		lines = append(lines, renderStatusLine(lane, kind, message, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Stories", colorize)...)
	total := 0
	for _, status := range queue.AllStoryStatuses() {
		count := report.StoryCounts[string(status)]
		total += count
		if count == 0 {
			continue
		}
		kind := statusInfo
		switch status {
		case queue.StoryFailed:
			kind = statusError
		case queue.StoryReadyForReview:
			kind = statusWarn
		case queue.StoryPublished:
			kind = statusOK
		}
		lines = append(lines, renderStatusLine(humanize(string(status)), kind, fmt.Sprintf("%d", count), colorize))
	}
	if total == 0 {
		lines = append(lines, renderStatusLine("Stories", statusInfo, "none yet", colorize))
	}

	return strings.Join(lines, "\n") + "\n"
}

func checkKind(result preflight.Result) statusKind {
	if result.Passed {
		return statusOK
	}
	return statusError
}
