package api

import (
	"testing"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
	"github.com/tiagogladstone/the-lost-archives/internal/workflow"
)

func TestFromStoryFormatsTimestampsAndMetadata(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	story := &queue.Story{
		ID:          7,
		Topic:       "The Library of Alexandria",
		Languages:   []string{"en-US", "pt-BR"},
		Status:      queue.StoryFailed,
		FailedStage: queue.StoryRendering,
		Metadata:    &queue.StoryMetadata{Description: "desc", Tags: []string{"history"}},
		CreatedAt:   created,
		UpdatedAt:   created.Add(time.Minute),
	}
	dto := FromStory(story)
	if dto.Status != "failed" || dto.FailedStage != "rendering" {
		t.Fatalf("unexpected status fields: %+v", dto)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
	if dto.Metadata == nil || dto.Metadata.Tags[0] != "history" {
		t.Fatalf("expected metadata to be carried, got %+v", dto.Metadata)
	}
	story.Languages[0] = "fr"
	if dto.Languages[0] != "en-US" {
		t.Fatal("expected languages to be copied")
	}
}

func TestFromJobOmitsUnsetTimes(t *testing.T) {
	dto := FromJob(&queue.Job{
		ID:       3,
		ParentID: 1,
		UnitID:   9,
		JobType:  queue.JobTranslateUnit,
		Status:   queue.JobQueued,
		Payload:  queue.JobPayload{Language: "es"},
	})
	if dto.StartedAt != "" || dto.CompletedAt != "" || dto.NextRetryAt != "" {
		t.Fatalf("expected empty timestamps, got %+v", dto)
	}
	if dto.Type != "translate_unit" || dto.Language != "es" || dto.SceneID != 9 {
		t.Fatalf("unexpected job dto %+v", dto)
	}
}

func TestHealthRequiresEveryLane(t *testing.T) {
	lanes := []workflow.LaneStatus{
		{JobType: queue.JobGenerateScript, Alive: true, Health: stage.Healthy("script")},
		{JobType: queue.JobRenderOutput, Alive: true, Health: stage.Unhealthy("render", "media service not configured")},
	}
	resp, ok := Health(lanes)
	if ok || resp.Status != "unhealthy" {
		t.Fatalf("expected unhealthy, got %+v", resp)
	}
	if !resp.Workers["generate_script"] || resp.Workers["render_output"] {
		t.Fatalf("unexpected worker map %+v", resp.Workers)
	}

	lanes[1].Health = stage.Healthy("render")
	resp, ok = Health(lanes)
	if !ok || resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %+v", resp)
	}

	if _, ok := Health(nil); ok {
		t.Fatal("expected a daemon without lanes to be unhealthy")
	}
}

func TestMergeJobStats(t *testing.T) {
	merged := MergeJobStats(map[queue.JobType]map[queue.JobStatus]int{
		queue.JobGenerateImage: {queue.JobQueued: 2, queue.JobFailed: 1},
	})
	if merged["generate_image"]["queued"] != 2 || merged["generate_image"]["failed"] != 1 {
		t.Fatalf("unexpected merged stats %+v", merged)
	}
}
