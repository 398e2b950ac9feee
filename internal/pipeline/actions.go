package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

// Brief is the operator request for a new story. Empty fields take the
// [pipeline] defaults.
type Brief struct {
	Topic                 string   `json:"topic"`
	Description           string   `json:"description"`
	TargetDurationMinutes int      `json:"target_duration_minutes"`
	Languages             []string `json:"languages"`
	Style                 string   `json:"style"`
	AspectRatio           string   `json:"aspect_ratio"`
}

func (c *Coordinator) resolveBrief(brief Brief) (queue.NewStory, error) {
	story := queue.NewStory{
		Topic:                 strings.TrimSpace(brief.Topic),
		Description:           strings.TrimSpace(brief.Description),
		TargetDurationMinutes: brief.TargetDurationMinutes,
		Style:                 strings.ToLower(strings.TrimSpace(brief.Style)),
		AspectRatio:           strings.TrimSpace(brief.AspectRatio),
	}
	if story.Topic == "" {
		return queue.NewStory{}, services.Wrap(services.ErrValidation, "pipeline", "create story", "Topic is required", nil)
	}
	if story.TargetDurationMinutes == 0 {
		story.TargetDurationMinutes = c.cfg.Pipeline.TargetDurationMinutes
	}
	if story.TargetDurationMinutes < 0 {
		return queue.NewStory{}, services.Wrap(services.ErrValidation, "pipeline", "create story", "Target duration must be positive", nil)
	}
	if story.Style == "" {
		story.Style = c.cfg.Pipeline.Style
	}
	if !config.ValidStyle(story.Style) {
		return queue.NewStory{}, services.Wrap(services.ErrValidation, "pipeline", "create story",
			fmt.Sprintf("Unsupported style %q", story.Style), nil)
	}
	if story.AspectRatio == "" {
		story.AspectRatio = c.cfg.Pipeline.AspectRatio
	}
	if !config.ValidAspectRatio(story.AspectRatio) {
		return queue.NewStory{}, services.Wrap(services.ErrValidation, "pipeline", "create story",
			fmt.Sprintf("Unsupported aspect ratio %q", story.AspectRatio), nil)
	}
	langs, err := config.CanonicalLanguages(brief.Languages)
	if err != nil {
		return queue.NewStory{}, services.Wrap(services.ErrValidation, "pipeline", "create story", "Invalid language", err)
	}
	if len(langs) == 0 {
		langs = append([]string(nil), c.cfg.Pipeline.Languages...)
	}
	story.Languages = langs
	return story, nil
}

// CreateStory inserts a draft story from brief.
func (c *Coordinator) CreateStory(ctx context.Context, brief Brief) (*queue.Story, error) {
	resolved, err := c.resolveBrief(brief)
	if err != nil {
		return nil, err
	}
	story, err := c.store.CreateStory(ctx, resolved)
	if err != nil {
		return nil, err
	}
	c.logger.Info("story created",
		logging.String(logging.FieldEventType, "story_created"),
		logging.Int64(logging.FieldStoryID, story.ID),
		logging.String("topic", story.Topic),
		logging.Any("languages", story.Languages),
	)
	return story, nil
}

// Start moves a draft story into scripting and enqueues its script job.
func (c *Coordinator) Start(ctx context.Context, storyID int64) error {
	var jobIDs []int64
	err := c.store.WithTx(ctx, func(tx *queue.Tx) error {
		story, err := requireStatus(ctx, tx, storyID, queue.StoryDraft)
		if err != nil {
			return err
		}
		if _, err := moveOrConflict(ctx, tx, story, queue.StoryScripting); err != nil {
			return err
		}
		jobIDs, err = tx.InsertJobs(ctx, queue.NewJob{ParentID: storyID, JobType: queue.JobGenerateScript})
		return err
	})
	if err != nil {
		return wrapAction("start", storyID, err)
	}
	c.logger.Info("story started",
		logging.String(logging.FieldEventType, "story_started"),
		logging.Int64(logging.FieldStoryID, storyID),
		logging.Any("job_ids", jobIDs),
	)
	return nil
}

// CreateAndStart creates a story and immediately starts it.
func (c *Coordinator) CreateAndStart(ctx context.Context, brief Brief) (*queue.Story, error) {
	story, err := c.CreateStory(ctx, brief)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx, story.ID); err != nil {
		return story, err
	}
	return c.store.GetStory(ctx, story.ID)
}

// SelectForReview stores the operator's title and thumbnail choice.
func (c *Coordinator) SelectForReview(ctx context.Context, storyID, titleID, thumbnailID int64) error {
	if err := c.store.SelectForReview(ctx, storyID, titleID, thumbnailID); err != nil {
		return wrapAction("select", storyID, err)
	}
	c.logger.Info("review selection stored",
		logging.String(logging.FieldEventType, "review_selected"),
		logging.Int64(logging.FieldStoryID, storyID),
		logging.Int64("title_option_id", titleID),
		logging.Int64("thumbnail_option_id", thumbnailID),
	)
	return nil
}

// Publish moves a reviewed story into publishing and enqueues the upload.
// Both selections must be made and no thumbnail regeneration may be pending.
func (c *Coordinator) Publish(ctx context.Context, storyID int64) error {
	err := c.store.WithTx(ctx, func(tx *queue.Tx) error {
		story, err := requireStatus(ctx, tx, storyID, queue.StoryReadyForReview)
		if err != nil {
			return err
		}
		if story.SelectedTitle == "" || story.SelectedThumbnailURL == "" {
			return fmt.Errorf("story %d has no title and thumbnail selection: %w", storyID, ErrInvalidState)
		}
		pending, err := tx.CountActiveJobs(ctx, storyID, queue.JobRegenerateThumbnail)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("story %d has a thumbnail regeneration in progress: %w", storyID, ErrInvalidState)
		}
		if _, err := moveOrConflict(ctx, tx, story, queue.StoryPublishing); err != nil {
			return err
		}
		_, err = tx.InsertJobs(ctx, queue.NewJob{ParentID: storyID, JobType: queue.JobUploadPublish})
		return err
	})
	if err != nil {
		return wrapAction("publish", storyID, err)
	}
	c.logger.Info("story publishing",
		logging.String(logging.FieldEventType, "story_publish_requested"),
		logging.Int64(logging.FieldStoryID, storyID),
	)
	return nil
}

// RegenerateThumbnail enqueues a new thumbnail version guided by feedback.
func (c *Coordinator) RegenerateThumbnail(ctx context.Context, storyID int64, feedback string) (int64, error) {
	feedback = strings.TrimSpace(feedback)
	var jobID int64
	err := c.store.WithTx(ctx, func(tx *queue.Tx) error {
		if _, err := requireStatus(ctx, tx, storyID, queue.StoryReadyForReview); err != nil {
			return err
		}
		pending, err := tx.CountActiveJobs(ctx, storyID, queue.JobRegenerateThumbnail)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("story %d already has a thumbnail regeneration in progress: %w", storyID, ErrInvalidState)
		}
		ids, err := tx.InsertJobs(ctx, queue.NewJob{
			ParentID: storyID,
			JobType:  queue.JobRegenerateThumbnail,
			Payload:  queue.JobPayload{Feedback: feedback},
		})
		if err != nil {
			return err
		}
		jobID = ids[0]
		return nil
	})
	if err != nil {
		return 0, wrapAction("regenerate thumbnail", storyID, err)
	}
	c.logger.Info("thumbnail regeneration requested",
		logging.String(logging.FieldEventType, "thumbnail_regeneration_requested"),
		logging.Int64(logging.FieldStoryID, storyID),
		logging.Int64(logging.FieldJobID, jobID),
	)
	return jobID, nil
}

// Retry re-queues a failed story's failed jobs and returns it to the stage it
// failed in, then settles the story in case nothing is left to wait for.
func (c *Coordinator) Retry(ctx context.Context, storyID int64) (queue.RetryResult, error) {
	result, err := c.store.RetryStory(ctx, storyID)
	if err != nil {
		return queue.RetryResult{}, wrapAction("retry", storyID, err)
	}
	c.logger.Info("story retried",
		logging.String(logging.FieldEventType, "story_retried"),
		logging.Int64(logging.FieldStoryID, storyID),
		logging.String(logging.FieldStatus, string(result.Status)),
		logging.Any("job_ids", result.JobIDs),
	)
	if _, err := c.Advance(ctx, storyID); err != nil {
		return result, err
	}
	return result, nil
}

func requireStatus(ctx context.Context, tx *queue.Tx, storyID int64, want queue.StoryStatus) (*queue.Story, error) {
	story, err := tx.Story(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, fmt.Errorf("story %d: %w", storyID, queue.ErrNotFound)
	}
	if story.Status != want {
		return nil, fmt.Errorf("story %d is %s, expected %s: %w", storyID, story.Status, want, ErrInvalidState)
	}
	return story, nil
}

func moveOrConflict(ctx context.Context, tx *queue.Tx, story *queue.Story, to queue.StoryStatus) (bool, error) {
	moved, err := tx.TransitionStory(ctx, story.ID, story.Status, to)
	if err != nil {
		return false, err
	}
	if !moved {
		return false, fmt.Errorf("story %d changed concurrently: %w", story.ID, ErrInvalidState)
	}
	return true, nil
}

func wrapAction(action string, storyID int64, err error) error {
	if errors.Is(err, ErrInvalidState) || errors.Is(err, queue.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s story %d: %w", action, storyID, err)
}
