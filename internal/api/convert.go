package api

import (
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/workflow"
)

// FromStory converts a story record to its API representation.
func FromStory(story *queue.Story) Story {
	if story == nil {
		return Story{}
	}
	dto := Story{
		ID:                    story.ID,
		Topic:                 story.Topic,
		Description:           story.Description,
		TargetDurationMinutes: story.TargetDurationMinutes,
		Languages:             append([]string(nil), story.Languages...),
		Style:                 story.Style,
		AspectRatio:           story.AspectRatio,
		Status:                string(story.Status),
		FailedStage:           string(story.FailedStage),
		VideoURL:              story.VideoURL,
		SelectedTitle:         story.SelectedTitle,
		SelectedThumbnailURL:  story.SelectedThumbnailURL,
		YouTubeVideoID:        story.YouTubeVideoID,
		YouTubeURL:            story.YouTubeURL,
		ErrorMessage:          story.ErrorMessage,
		CreatedAt:             formatTime(story.CreatedAt),
		UpdatedAt:             formatTime(story.UpdatedAt),
	}
	if story.Metadata != nil {
		dto.Metadata = &Metadata{
			Description: story.Metadata.Description,
			Tags:        append([]string(nil), story.Metadata.Tags...),
		}
	}
	return dto
}

// FromStories converts a slice of story records.
func FromStories(stories []*queue.Story) []Story {
	out := make([]Story, 0, len(stories))
	for _, story := range stories {
		out = append(out, FromStory(story))
	}
	return out
}

// FromScene converts a scene record.
func FromScene(scene *queue.Scene) Scene {
	if scene == nil {
		return Scene{}
	}
	return Scene{
		ID:              scene.ID,
		Order:           scene.Order,
		Text:            scene.Text,
		Translations:    scene.Translations,
		ImagePrompt:     scene.ImagePrompt,
		ImageURL:        scene.ImageURL,
		AudioURL:        scene.AudioURL,
		DurationSeconds: scene.DurationSeconds,
		Produced:        scene.Produced(),
	}
}

// FromJob converts a job record.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:           job.ID,
		StoryID:      job.ParentID,
		SceneID:      job.UnitID,
		Type:         string(job.JobType),
		Status:       string(job.Status),
		Language:     job.Payload.Language,
		Feedback:     job.Payload.Feedback,
		WorkerID:     job.WorkerID,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		NextRetryAt:  formatTimePtr(job.NextRetryAt),
		HeartbeatAt:  formatTimePtr(job.HeartbeatAt),
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    formatTime(job.CreatedAt),
		StartedAt:    formatTimePtr(job.StartedAt),
		CompletedAt:  formatTimePtr(job.CompletedAt),
	}
}

// FromJobs converts a slice of job records.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromLanes converts workflow lane snapshots, keeping their pipeline order.
func FromLanes(lanes []workflow.LaneStatus) []Lane {
	out := make([]Lane, 0, len(lanes))
	for _, lane := range lanes {
		out = append(out, Lane{
			JobType:   string(lane.JobType),
			WorkerID:  lane.WorkerID,
			Alive:     lane.Alive,
			LastTick:  formatTime(lane.LastTick),
			LastJobID: lane.LastJobID,
			LastError: lane.LastError,
			Processed: lane.Processed,
			Failed:    lane.Failed,
			Health:    LaneHealth{Ready: lane.Health.Ready, Detail: lane.Health.Detail},
		})
	}
	return out
}

// FromStatusSummary fills the lane and job sections of a daemon status.
func FromStatusSummary(summary workflow.StatusSummary) DaemonStatus {
	return DaemonStatus{
		Running:  summary.Running,
		Lanes:    FromLanes(summary.Lanes),
		JobStats: MergeJobStats(summary.JobStats),
	}
}

// MergeJobStats produces a string-keyed representation of job stats.
func MergeJobStats(stats map[queue.JobType]map[queue.JobStatus]int) map[string]map[string]int {
	out := make(map[string]map[string]int, len(stats))
	for jobType, byStatus := range stats {
		inner := make(map[string]int, len(byStatus))
		for status, count := range byStatus {
			inner[string(status)] = count
		}
		out[string(jobType)] = inner
	}
	return out
}

// MergeStoryCounts produces a string-keyed representation of story counts.
func MergeStoryCounts(counts map[queue.StoryStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, count := range counts {
		out[string(status)] = count
	}
	return out
}

// Health derives the liveness payload from lane snapshots. A lane counts as
// up only while its loop is alive and its handler reports ready.
func Health(lanes []workflow.LaneStatus) (HealthResponse, bool) {
	resp := HealthResponse{Status: "healthy", Workers: make(map[string]bool, len(lanes))}
	healthy := len(lanes) > 0
	for _, lane := range lanes {
		up := lane.Alive && lane.Health.Ready
		resp.Workers[string(lane.JobType)] = up
		if !up {
			healthy = false
		}
	}
	if !healthy {
		resp.Status = "unhealthy"
	}
	return resp, healthy
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
