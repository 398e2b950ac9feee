package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// timeLayout is fixed width so text comparison matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const jobColumns = "id, parent_id, unit_id, job_type, status, payload, worker_id, retry_count, max_retries, next_retry_at, heartbeat_at, error_message, created_at, started_at, completed_at"

const storyColumns = "id, topic, description, target_duration_minutes, languages, style, aspect_ratio, status, failed_stage, script_text, video_url, selected_title, selected_thumbnail_url, metadata, youtube_video_id, youtube_url, error_message, created_at, updated_at"

const sceneColumns = "id, story_id, scene_order, text_content, translated_text, image_prompt, image_url, audio_url, duration_seconds, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job          Job
		unitID       sql.NullInt64
		jobType      string
		status       string
		payload      sql.NullString
		workerID     sql.NullString
		nextRetryRaw sql.NullString
		heartbeatRaw sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.ParentID,
		&unitID,
		&jobType,
		&status,
		&payload,
		&workerID,
		&job.RetryCount,
		&job.MaxRetries,
		&nextRetryRaw,
		&heartbeatRaw,
		&errorMessage,
		&createdRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}
	job.UnitID = unitID.Int64
	job.JobType = JobType(jobType)
	job.Status = JobStatus(status)
	job.WorkerID = workerID.String
	job.ErrorMessage = errorMessage.String
	if payload.Valid && payload.String != "" {
		// A malformed payload leaves the zero value; handlers validate what they need.
		_ = json.Unmarshal([]byte(payload.String), &job.Payload)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	job.NextRetryAt = parseNullTime(nextRetryRaw)
	job.HeartbeatAt = parseNullTime(heartbeatRaw)
	job.StartedAt = parseNullTime(startedRaw)
	job.CompletedAt = parseNullTime(completedRaw)
	return &job, nil
}

func scanStory(scanner rowScanner) (*Story, error) {
	var (
		story          Story
		languages      string
		status         string
		failedStage    sql.NullString
		scriptText     sql.NullString
		videoURL       sql.NullString
		selectedTitle  sql.NullString
		selectedThumb  sql.NullString
		metadata       sql.NullString
		youtubeVideoID sql.NullString
		youtubeURL     sql.NullString
		errorMessage   sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&story.ID,
		&story.Topic,
		&story.Description,
		&story.TargetDurationMinutes,
		&languages,
		&story.Style,
		&story.AspectRatio,
		&status,
		&failedStage,
		&scriptText,
		&videoURL,
		&selectedTitle,
		&selectedThumb,
		&metadata,
		&youtubeVideoID,
		&youtubeURL,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	story.Status = StoryStatus(status)
	story.FailedStage = StoryStatus(failedStage.String)
	story.ScriptText = scriptText.String
	story.VideoURL = videoURL.String
	story.SelectedTitle = selectedTitle.String
	story.SelectedThumbnailURL = selectedThumb.String
	story.YouTubeVideoID = youtubeVideoID.String
	story.YouTubeURL = youtubeURL.String
	story.ErrorMessage = errorMessage.String
	_ = json.Unmarshal([]byte(languages), &story.Languages)
	if metadata.Valid && metadata.String != "" {
		var meta StoryMetadata
		if err := json.Unmarshal([]byte(metadata.String), &meta); err == nil {
			story.Metadata = &meta
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		story.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		story.UpdatedAt = updated
	}
	return &story, nil
}

func scanScene(scanner rowScanner) (*Scene, error) {
	var (
		scene        Scene
		translations sql.NullString
		imagePrompt  sql.NullString
		imageURL     sql.NullString
		audioURL     sql.NullString
		duration     sql.NullFloat64
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&scene.ID,
		&scene.StoryID,
		&scene.Order,
		&scene.Text,
		&translations,
		&imagePrompt,
		&imageURL,
		&audioURL,
		&duration,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	scene.ImagePrompt = imagePrompt.String
	scene.ImageURL = imageURL.String
	scene.AudioURL = audioURL.String
	scene.DurationSeconds = duration.Float64
	scene.Translations = map[string]string{}
	if translations.Valid && translations.String != "" {
		_ = json.Unmarshal([]byte(translations.String), &scene.Translations)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		scene.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		scene.UpdatedAt = updated
	}
	return &scene, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func jobTypeArgs(types []JobType) []any {
	args := make([]any, 0, len(types))
	for _, jt := range types {
		args = append(args, string(jt))
	}
	return args
}

func truncateMessage(msg string, limit int) string {
	msg = strings.TrimSpace(msg)
	if len(msg) <= limit {
		return msg
	}
	for limit > 0 && !utf8.RuneStart(msg[limit]) {
		limit--
	}
	return msg[:limit]
}
