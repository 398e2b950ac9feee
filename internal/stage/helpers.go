package stage

import (
	"fmt"
	"strings"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

// RequireUnit returns the scene id of a scene-level job.
// A missing unit is a services.ErrValidation suitable for Execute methods.
func RequireUnit(job *queue.Job) (int64, error) {
	if job == nil || job.UnitID <= 0 {
		return 0, services.Wrap(
			services.ErrValidation, jobStage(job), "resolve scene",
			"Job has no scene attached", nil)
	}
	return job.UnitID, nil
}

// RequireLanguage returns the target language carried in the job payload.
func RequireLanguage(job *queue.Job) (string, error) {
	if job == nil || strings.TrimSpace(job.Payload.Language) == "" {
		return "", services.Wrap(
			services.ErrValidation, jobStage(job), "resolve language",
			"Job payload has no target language", nil)
	}
	return strings.TrimSpace(job.Payload.Language), nil
}

// MissingStory reports a job whose parent story no longer exists.
func MissingStory(job *queue.Job) error {
	return services.Wrap(
		services.ErrNotFound, jobStage(job), "load story",
		fmt.Sprintf("Story %d not found", job.ParentID), nil)
}

func jobStage(job *queue.Job) string {
	if job == nil {
		return "stage"
	}
	return string(job.JobType)
}
