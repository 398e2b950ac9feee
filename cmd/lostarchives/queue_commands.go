package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiagogladstone/the-lost-archives/internal/api"
	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

var (
	jobHeaders = []string{"ID", "Story", "Type", "Status", "Scene", "Lang", "Tries", "Next retry", "Error"}
	jobAligns  = []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft}
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueReclaimCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		types    []string
		storyID  int64
		limit    int
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := buildJobFilter(statuses, types, storyID, limit)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := api.NewStoryService(store).Jobs(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonMode {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderTable(jobHeaders, jobRows(jobs), jobAligns))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Filter by job type (repeatable)")
	cmd.Flags().Int64Var(&storyID, "story", 0, "Only jobs of this story")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to show")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}

func buildJobFilter(statuses, types []string, storyID int64, limit int) (queue.JobFilter, error) {
	filter := queue.JobFilter{StoryID: storyID, Limit: limit}
	for _, value := range statuses {
		status, ok := queue.ParseJobStatus(value)
		if !ok {
			return queue.JobFilter{}, fmt.Errorf("unknown job status %q", value)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, value := range types {
		jobType, ok := queue.ParseJobType(value)
		if !ok {
			return queue.JobFilter{}, fmt.Errorf("unknown job type %q", value)
		}
		filter.Types = append(filter.Types, jobType)
	}
	if storyID < 0 || limit < 0 {
		return queue.JobFilter{}, fmt.Errorf("story and limit must not be negative")
	}
	return filter, nil
}

func jobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		scene := "-"
		if job.SceneID > 0 {
			scene = strconv.FormatInt(job.SceneID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			strconv.FormatInt(job.StoryID, 10),
			job.Type,
			humanize(job.Status),
			scene,
			orDash(job.Language),
			fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
			orDash(job.NextRetryAt),
			truncate(orDash(job.ErrorMessage), 40),
		})
	}
	return rows
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by type and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.JobStats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonMode {
					return writeJSON(cmd, api.MergeJobStats(stats))
				}
				out := cmd.OutOrStdout()
				rows := buildStatsRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				headers := []string{"Type"}
				aligns := []columnAlignment{alignLeft}
				for _, status := range queue.AllJobStatuses() {
					headers = append(headers, humanize(string(status)))
					aligns = append(aligns, alignRight)
				}
				fmt.Fprint(out, renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}

// buildStatsRows lays job counts out in pipeline order, skipping idle types.
func buildStatsRows(stats map[queue.JobType]map[queue.JobStatus]int) [][]string {
	var rows [][]string
	for _, jobType := range queue.AllJobTypes() {
		byStatus, ok := stats[jobType]
		if !ok {
			continue
		}
		row := []string{string(jobType)}
		for _, status := range queue.AllJobStatuses() {
			row = append(row, strconv.Itoa(byStatus[status]))
		}
		rows = append(rows, row)
	}
	return rows
}

func newQueueReclaimCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return jobs with expired leases to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				window := olderThan
				if window <= 0 {
					window = cfg.HeartbeatTimeout()
				}
				ids, ran, err := reclaimStale(cmd.Context(), store, window)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ran {
					fmt.Fprintln(out, "Another process is sweeping leases; nothing done")
					return nil
				}
				if len(ids) == 0 {
					fmt.Fprintf(out, "No leases older than %s\n", window)
					return nil
				}
				fmt.Fprintf(out, "Reclaimed %d job(s): %v\n", len(ids), ids)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Lease age to reclaim (default workflow.heartbeat_timeout)")
	return cmd
}

func reclaimStale(ctx context.Context, store *queue.Store, window time.Duration) ([]int64, bool, error) {
	var ids []int64
	ran, err := store.TryExclusive(ctx, queue.LockReclaim, func(ctx context.Context) error {
		reclaimed, err := store.ReclaimStale(ctx, store.Now().Add(-window))
		ids = reclaimed
		return err
	})
	return ids, ran, err
}
