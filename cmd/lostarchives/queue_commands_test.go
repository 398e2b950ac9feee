package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/testsupport"
)

func TestBuildJobFilter(t *testing.T) {
	filter, err := buildJobFilter([]string{"queued", "FAILED"}, []string{"generate_image"}, 4, 10)
	if err != nil {
		t.Fatalf("buildJobFilter: %v", err)
	}
	if len(filter.Statuses) != 2 || filter.Statuses[1] != queue.JobFailed {
		t.Fatalf("unexpected statuses %v", filter.Statuses)
	}
	if len(filter.Types) != 1 || filter.Types[0] != queue.JobGenerateImage {
		t.Fatalf("unexpected types %v", filter.Types)
	}
	if filter.StoryID != 4 || filter.Limit != 10 {
		t.Fatalf("unexpected filter %+v", filter)
	}

	cases := map[string]func() error{
		"status": func() error { _, err := buildJobFilter([]string{"stuck"}, nil, 0, 0); return err },
		"type":   func() error { _, err := buildJobFilter(nil, []string{"rip"}, 0, 0); return err },
		"limit":  func() error { _, err := buildJobFilter(nil, nil, 0, -1); return err },
	}
	for name, fn := range cases {
		if fn() == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestBuildStatsRowsFollowsPipelineOrder(t *testing.T) {
	stats := map[queue.JobType]map[queue.JobStatus]int{
		queue.JobRenderOutput:   {queue.JobQueued: 1},
		queue.JobGenerateScript: {queue.JobCompleted: 2, queue.JobFailed: 1},
	}
	rows := buildStatsRows(stats)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	want := []string{"generate_script", "0", "0", "2", "1"}
	if strings.Join(rows[0], ",") != strings.Join(want, ",") {
		t.Fatalf("first row = %v, want %v", rows[0], want)
	}
	if rows[1][0] != "render_output" {
		t.Fatalf("second row = %v", rows[1])
	}
}

func TestQueueListAndStats(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "No jobs")

	out, _, err = runCLI(t, []string{"queue", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	if _, _, err := runCLI(t, []string{"story", "create", "Nazca lines"}, env.configPath); err != nil {
		t.Fatalf("story create: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "list", "--type", "generate_script"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "generate_script")
	requireContains(t, out, "0/3")

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --status: %v", err)
	}
	requireContains(t, out, "No jobs")

	out, _, err = runCLI(t, []string{"queue", "stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue stats --json: %v", err)
	}
	var stats map[string]map[string]int
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats["generate_script"]["queued"] != 1 {
		t.Fatalf("expected one queued script job, got %v", stats)
	}
}

func TestQueueReclaimReturnsExpiredLeases(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	story := testsupport.NewStory(t, env.store, env.cfg, "Mary Celeste")
	if _, err := env.store.EnqueueJobs(ctx, queue.NewJob{ParentID: story.ID, JobType: queue.JobGenerateScript}); err != nil {
		t.Fatalf("EnqueueJobs: %v", err)
	}
	job := testsupport.MustClaim(t, env.store, queue.JobGenerateScript, "worker-a")

	out, _, err := runCLI(t, []string{"queue", "reclaim"}, env.configPath)
	if err != nil {
		t.Fatalf("queue reclaim: %v", err)
	}
	requireContains(t, out, "No leases older than")

	time.Sleep(20 * time.Millisecond)
	out, _, err = runCLI(t, []string{"queue", "reclaim", "--older-than", "5ms"}, env.configPath)
	if err != nil {
		t.Fatalf("queue reclaim --older-than: %v", err)
	}
	requireContains(t, out, "Reclaimed 1 job(s)")

	reclaimed, err := env.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if reclaimed.Status != queue.JobQueued || reclaimed.RetryCount != 0 || reclaimed.WorkerID != "" {
		t.Fatalf("unexpected job after reclaim %+v", reclaimed)
	}
}

func TestReclaimStaleUsesStoreClock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()

	story := testsupport.NewStory(t, store, cfg, "Dyatlov Pass")
	if _, err := store.EnqueueJobs(ctx, queue.NewJob{ParentID: story.ID, JobType: queue.JobGenerateAudio}); err != nil {
		t.Fatalf("EnqueueJobs: %v", err)
	}
	testsupport.MustClaim(t, store, queue.JobGenerateAudio, "worker-b")

	clock.Advance(30 * time.Second)
	ids, ran, err := reclaimStale(ctx, store, time.Minute)
	if err != nil || !ran {
		t.Fatalf("reclaimStale: ran=%v err=%v", ran, err)
	}
	if len(ids) != 0 {
		t.Fatalf("lease within window reclaimed: %v", ids)
	}

	clock.Advance(2 * time.Minute)
	ids, _, err = reclaimStale(ctx, store, time.Minute)
	if err != nil {
		t.Fatalf("reclaimStale: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one reclaimed job, got %v", ids)
	}
}
