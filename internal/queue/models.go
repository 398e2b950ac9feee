package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// JobType names one kind of work unit. Each type is served by its own worker lane.
type JobType string

const (
	JobGenerateScript      JobType = "generate_script"
	JobGenerateImage       JobType = "generate_image"
	JobGenerateAudio       JobType = "generate_audio"
	JobTranslateUnit       JobType = "translate_unit"
	JobRenderOutput        JobType = "render_output"
	JobGenerateThumbnails  JobType = "generate_thumbnails"
	JobGenerateMetadata    JobType = "generate_metadata"
	JobUploadPublish       JobType = "upload_publish"
	JobRegenerateThumbnail JobType = "regenerate_thumbnail"
)

var allJobTypes = []JobType{
	JobGenerateScript,
	JobGenerateImage,
	JobGenerateAudio,
	JobTranslateUnit,
	JobRenderOutput,
	JobGenerateThumbnails,
	JobGenerateMetadata,
	JobUploadPublish,
	JobRegenerateThumbnail,
}

// JobStatus tracks a job through its claim lifecycle.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

var allJobStatuses = []JobStatus{JobQueued, JobProcessing, JobCompleted, JobFailed}

// StoryStatus is the pipeline stage of a story.
type StoryStatus string

const (
	StoryDraft          StoryStatus = "draft"
	StoryScripting      StoryStatus = "scripting"
	StoryProducing      StoryStatus = "producing"
	StoryRendering      StoryStatus = "rendering"
	StoryPostProduction StoryStatus = "post_production"
	StoryReadyForReview StoryStatus = "ready_for_review"
	StoryPublishing     StoryStatus = "publishing"
	StoryPublished      StoryStatus = "published"
	StoryFailed         StoryStatus = "failed"
)

var allStoryStatuses = []StoryStatus{
	StoryDraft,
	StoryScripting,
	StoryProducing,
	StoryRendering,
	StoryPostProduction,
	StoryReadyForReview,
	StoryPublishing,
	StoryPublished,
	StoryFailed,
}

// resumeStatus maps a failed job type to the story stage that re-runs it.
var resumeStatus = map[JobType]StoryStatus{
	JobGenerateScript:      StoryScripting,
	JobGenerateImage:       StoryProducing,
	JobGenerateAudio:       StoryProducing,
	JobTranslateUnit:       StoryProducing,
	JobRenderOutput:        StoryRendering,
	JobGenerateThumbnails:  StoryPostProduction,
	JobGenerateMetadata:    StoryPostProduction,
	JobUploadPublish:       StoryPublishing,
	JobRegenerateThumbnail: StoryReadyForReview,
}

// AllJobTypes returns every known job type in pipeline order.
func AllJobTypes() []JobType {
	cp := make([]JobType, len(allJobTypes))
	copy(cp, allJobTypes)
	return cp
}

// AllJobStatuses returns every job status in lifecycle order.
func AllJobStatuses() []JobStatus {
	return append([]JobStatus(nil), allJobStatuses...)
}

// AllStoryStatuses returns every story status in pipeline order.
func AllStoryStatuses() []StoryStatus {
	cp := make([]StoryStatus, len(allStoryStatuses))
	copy(cp, allStoryStatuses)
	return cp
}

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	for _, jt := range allJobTypes {
		if jt == normalized {
			return jt, true
		}
	}
	return "", false
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allJobStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ParseStoryStatus converts a string into a known StoryStatus.
func ParseStoryStatus(value string) (StoryStatus, bool) {
	normalized := StoryStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStoryStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ResumeStatusFor returns the stage a story returns to when a job of the
// given type is retried by an operator.
func ResumeStatusFor(jobType JobType) (StoryStatus, bool) {
	status, ok := resumeStatus[jobType]
	return status, ok
}

// sameStageJobTypes lists the job types that resume to the same stage as jobType.
func sameStageJobTypes(jobType JobType) []JobType {
	stage, ok := resumeStatus[jobType]
	if !ok {
		return []JobType{jobType}
	}
	var types []JobType
	for _, candidate := range allJobTypes {
		if resumeStatus[candidate] == stage {
			types = append(types, candidate)
		}
	}
	return types
}

// IsTerminal reports whether a story can no longer progress on its own.
func (s StoryStatus) IsTerminal() bool {
	return s == StoryPublished || s == StoryFailed
}

// stageOrder ranks story statuses along the happy path.
func (s StoryStatus) stageOrder() int {
	for idx, status := range allStoryStatuses {
		if status == s {
			return idx
		}
	}
	return -1
}

// JobPayload carries per-job parameters that do not fit the fixed columns.
type JobPayload struct {
	Language string `json:"language,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

func (p JobPayload) isZero() bool {
	return p.Language == "" && p.Feedback == ""
}

// Job is one claimable unit of work.
type Job struct {
	ID       int64
	ParentID int64
	// UnitID is the scene the job acts on; zero for story-level jobs.
	UnitID       int64
	JobType      JobType
	Status       JobStatus
	Payload      JobPayload
	WorkerID     string
	RetryCount   int
	MaxRetries   int
	NextRetryAt  *time.Time
	HeartbeatAt  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Attempts returns how many times the job has been executed, counting the current run.
func (j Job) Attempts() int {
	return j.RetryCount + 1
}

// NewJob describes a job to insert.
type NewJob struct {
	ParentID int64
	UnitID   int64
	JobType  JobType
	Payload  JobPayload
}

// StoryMetadata is the publish metadata produced during post-production.
type StoryMetadata struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Story is the parent entity that owns scenes, options and jobs.
type Story struct {
	ID                    int64
	Topic                 string
	Description           string
	TargetDurationMinutes int
	Languages             []string
	Style                 string
	AspectRatio           string
	Status                StoryStatus
	// FailedStage is the status the story held when a job exhausted its retries.
	FailedStage          StoryStatus
	ScriptText           string
	VideoURL             string
	SelectedTitle        string
	SelectedThumbnailURL string
	Metadata             *StoryMetadata
	YouTubeVideoID       string
	YouTubeURL           string
	ErrorMessage         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SourceLanguage is the narration language of the story.
func (s Story) SourceLanguage() string {
	if len(s.Languages) == 0 {
		return ""
	}
	return s.Languages[0]
}

// TranslationLanguages lists the languages that receive translation jobs.
func (s Story) TranslationLanguages() []string {
	if len(s.Languages) < 2 {
		return nil
	}
	return append([]string(nil), s.Languages[1:]...)
}

// NewStory is the operator brief for a new story.
type NewStory struct {
	Topic                 string
	Description           string
	TargetDurationMinutes int
	Languages             []string
	Style                 string
	AspectRatio           string
}

// Scene is one ordered unit of a story.
type Scene struct {
	ID              int64
	StoryID         int64
	Order           int
	Text            string
	Translations    map[string]string
	ImagePrompt     string
	ImageURL        string
	AudioURL        string
	DurationSeconds float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Produced reports whether both media assets of the scene exist.
func (s Scene) Produced() bool {
	return s.ImageURL != "" && s.AudioURL != ""
}

// TitleOption is a candidate title offered for review.
type TitleOption struct {
	ID        int64
	StoryID   int64
	Title     string
	CreatedAt time.Time
}

// ThumbnailOption is a candidate thumbnail offered for review.
type ThumbnailOption struct {
	ID        int64
	StoryID   int64
	ImageURL  string
	Prompt    string
	Feedback  string
	Version   int
	CreatedAt time.Time
}

// NewThumbnail describes a generated thumbnail to store.
type NewThumbnail struct {
	ImageURL string
	Prompt   string
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	StoryID  int64
	Types    []JobType
	Statuses []JobStatus
	Limit    int
}

// HealthSummary aggregates job counts by lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the store.
type DatabaseHealth struct {
	Driver           string
	Location         string
	DatabaseReadable bool
	SchemaVersion    int64
	MissingTables    []string
	TotalJobs        int
	Error            string
}

func encodePayload(payload JobPayload) (any, error) {
	if payload.isZero() {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
