package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Story describes a story in a transport-friendly format.
type Story struct {
	ID                    int64     `json:"id"`
	Topic                 string    `json:"topic"`
	Description           string    `json:"description,omitempty"`
	TargetDurationMinutes int       `json:"targetDurationMinutes"`
	Languages             []string  `json:"languages"`
	Style                 string    `json:"style"`
	AspectRatio           string    `json:"aspectRatio"`
	Status                string    `json:"status"`
	FailedStage           string    `json:"failedStage,omitempty"`
	VideoURL              string    `json:"videoUrl,omitempty"`
	SelectedTitle         string    `json:"selectedTitle,omitempty"`
	SelectedThumbnailURL  string    `json:"selectedThumbnailUrl,omitempty"`
	Metadata              *Metadata `json:"metadata,omitempty"`
	YouTubeVideoID        string    `json:"youtubeVideoId,omitempty"`
	YouTubeURL            string    `json:"youtubeUrl,omitempty"`
	ErrorMessage          string    `json:"errorMessage,omitempty"`
	CreatedAt             string    `json:"createdAt,omitempty"`
	UpdatedAt             string    `json:"updatedAt,omitempty"`
}

// Metadata is the publish description and tags.
type Metadata struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Scene describes one ordered unit of a story.
type Scene struct {
	ID              int64             `json:"id"`
	Order           int               `json:"order"`
	Text            string            `json:"text"`
	Translations    map[string]string `json:"translations,omitempty"`
	ImagePrompt     string            `json:"imagePrompt,omitempty"`
	ImageURL        string            `json:"imageUrl,omitempty"`
	AudioURL        string            `json:"audioUrl,omitempty"`
	DurationSeconds float64           `json:"durationSeconds,omitempty"`
	Produced        bool              `json:"produced"`
}

// TitleOption is a reviewable title candidate.
type TitleOption struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ThumbnailOption is a reviewable thumbnail candidate.
type ThumbnailOption struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt,omitempty"`
	Feedback string `json:"feedback,omitempty"`
	Version  int    `json:"version"`
}

// Job describes a claimable work unit.
type Job struct {
	ID           int64  `json:"id"`
	StoryID      int64  `json:"storyId"`
	SceneID      int64  `json:"sceneId,omitempty"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Language     string `json:"language,omitempty"`
	Feedback     string `json:"feedback,omitempty"`
	WorkerID     string `json:"workerId,omitempty"`
	RetryCount   int    `json:"retryCount"`
	MaxRetries   int    `json:"maxRetries"`
	NextRetryAt  string `json:"nextRetryAt,omitempty"`
	HeartbeatAt  string `json:"heartbeatAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	CompletedAt  string `json:"completedAt,omitempty"`
}

// StoryDetail is a story with everything hanging off it.
type StoryDetail struct {
	Story      Story             `json:"story"`
	Scenes     []Scene           `json:"scenes"`
	Titles     []TitleOption     `json:"titles"`
	Thumbnails []ThumbnailOption `json:"thumbnails"`
	Jobs       []Job             `json:"jobs"`
}

// LaneHealth mirrors readiness reporting for one handler.
type LaneHealth struct {
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Lane summarizes one worker lane.
type Lane struct {
	JobType   string     `json:"jobType"`
	WorkerID  string     `json:"workerId"`
	Alive     bool       `json:"alive"`
	LastTick  string     `json:"lastTick,omitempty"`
	LastJobID int64      `json:"lastJobId,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
	Health    LaneHealth `json:"health"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool                      `json:"running"`
	PID          int                       `json:"pid"`
	Driver       string                    `json:"driver"`
	LockFilePath string                    `json:"lockFilePath"`
	Lanes        []Lane                    `json:"lanes"`
	JobStats     map[string]map[string]int `json:"jobStats"`
	StoryCounts  map[string]int            `json:"storyCounts"`
	LastSweep    string                    `json:"lastSweep,omitempty"`
}

// HealthResponse is the liveness payload served on /health.
type HealthResponse struct {
	Status  string          `json:"status"`
	Workers map[string]bool `json:"workers"`
}

// CreateStoryRequest is the operator brief accepted by POST /api/stories.
type CreateStoryRequest struct {
	Topic                 string   `json:"topic"`
	Description           string   `json:"description,omitempty"`
	TargetDurationMinutes int      `json:"targetDurationMinutes,omitempty"`
	Languages             []string `json:"languages,omitempty"`
	Style                 string   `json:"style,omitempty"`
	AspectRatio           string   `json:"aspectRatio,omitempty"`
	// Draft leaves the story unstarted.
	Draft bool `json:"draft,omitempty"`
}

// SelectRequest carries the operator's review choice.
type SelectRequest struct {
	TitleID     int64 `json:"titleId"`
	ThumbnailID int64 `json:"thumbnailId"`
}

// RegenerateRequest carries free-text thumbnail feedback.
type RegenerateRequest struct {
	Feedback string `json:"feedback"`
}

// RegenerateResponse reports the queued regeneration job.
type RegenerateResponse struct {
	JobID int64 `json:"jobId"`
}

// RetryResponse reports the outcome of an operator retry.
type RetryResponse struct {
	StoryID int64   `json:"storyId"`
	Status  string  `json:"status"`
	JobIDs  []int64 `json:"jobIds"`
}

// StoryListResponse wraps a collection of stories.
type StoryListResponse struct {
	Stories []Story `json:"stories"`
}

// StoryResponse wraps a single story.
type StoryResponse struct {
	Story Story `json:"story"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
