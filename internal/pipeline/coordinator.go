package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/notifications"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

// ErrInvalidState is returned when an action does not apply to the story's status.
var ErrInvalidState = queue.ErrInvalidState

// Coordinator advances stories and runs operator actions.
type Coordinator struct {
	store    *queue.Store
	cfg      *config.Config
	notifier notifications.Service
	logger   *slog.Logger
	rules    map[queue.StoryStatus]rule
}

// rule describes one automatic transition.
type rule struct {
	from queue.StoryStatus
	to   queue.StoryStatus
	// stageJobs must have no queued or processing job before the transition.
	stageJobs []queue.JobType
	ready     func(ctx context.Context, tx *queue.Tx, story *queue.Story) (bool, error)
	// next builds the jobs of the following stage; nil means none.
	next func(ctx context.Context, tx *queue.Tx, story *queue.Story) ([]queue.NewJob, error)
}

// NewCoordinator builds a coordinator. A nil notifier disables notifications.
func NewCoordinator(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) *Coordinator {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		store:    store,
		cfg:      cfg,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
	c.rules = c.buildRules()
	return c
}

func (c *Coordinator) buildRules() map[queue.StoryStatus]rule {
	rules := []rule{
		{
			from:      queue.StoryScripting,
			to:        queue.StoryProducing,
			stageJobs: []queue.JobType{queue.JobGenerateScript},
			ready: func(ctx context.Context, tx *queue.Tx, story *queue.Story) (bool, error) {
				if story.ScriptText == "" {
					return false, nil
				}
				scenes, err := tx.Scenes(ctx, story.ID)
				return len(scenes) > 0, err
			},
			next: productionJobs,
		},
		// Translations fill optional localized fields and never hold back the render.
		{
			from:      queue.StoryProducing,
			to:        queue.StoryRendering,
			stageJobs: []queue.JobType{queue.JobGenerateImage, queue.JobGenerateAudio},
			ready: func(ctx context.Context, tx *queue.Tx, story *queue.Story) (bool, error) {
				scenes, err := tx.Scenes(ctx, story.ID)
				if err != nil || len(scenes) == 0 {
					return false, err
				}
				for _, scene := range scenes {
					if !scene.Produced() {
						return false, nil
					}
				}
				return true, nil
			},
			next: storyJobs(queue.JobRenderOutput),
		},
		{
			from:      queue.StoryRendering,
			to:        queue.StoryPostProduction,
			stageJobs: []queue.JobType{queue.JobRenderOutput},
			ready: func(_ context.Context, _ *queue.Tx, story *queue.Story) (bool, error) {
				return story.VideoURL != "", nil
			},
			next: storyJobs(queue.JobGenerateThumbnails, queue.JobGenerateMetadata),
		},
		{
			from:      queue.StoryPostProduction,
			to:        queue.StoryReadyForReview,
			stageJobs: []queue.JobType{queue.JobGenerateThumbnails, queue.JobGenerateMetadata},
			ready: func(ctx context.Context, tx *queue.Tx, story *queue.Story) (bool, error) {
				titles, thumbnails, err := tx.CountOptions(ctx, story.ID)
				if err != nil {
					return false, err
				}
				return titles >= c.cfg.Pipeline.TitleOptions && thumbnails >= c.cfg.Pipeline.ThumbnailOptions, nil
			},
		},
		{
			from:      queue.StoryPublishing,
			to:        queue.StoryPublished,
			stageJobs: []queue.JobType{queue.JobUploadPublish},
			ready: func(_ context.Context, _ *queue.Tx, story *queue.Story) (bool, error) {
				return story.YouTubeVideoID != "", nil
			},
		},
	}
	byStatus := make(map[queue.StoryStatus]rule, len(rules))
	for _, r := range rules {
		byStatus[r.from] = r
	}
	return byStatus
}

// productionJobs fans a scripted story out into per-scene media and translation jobs.
func productionJobs(ctx context.Context, tx *queue.Tx, story *queue.Story) ([]queue.NewJob, error) {
	scenes, err := tx.Scenes(ctx, story.ID)
	if err != nil {
		return nil, err
	}
	targets := story.TranslationLanguages()
	jobs := make([]queue.NewJob, 0, len(scenes)*(2+len(targets)))
	for _, scene := range scenes {
		jobs = append(jobs,
			queue.NewJob{ParentID: story.ID, UnitID: scene.ID, JobType: queue.JobGenerateImage},
			queue.NewJob{ParentID: story.ID, UnitID: scene.ID, JobType: queue.JobGenerateAudio},
		)
		for _, lang := range targets {
			jobs = append(jobs, queue.NewJob{
				ParentID: story.ID,
				UnitID:   scene.ID,
				JobType:  queue.JobTranslateUnit,
				Payload:  queue.JobPayload{Language: lang},
			})
		}
	}
	return jobs, nil
}

func storyJobs(types ...queue.JobType) func(context.Context, *queue.Tx, *queue.Story) ([]queue.NewJob, error) {
	return func(_ context.Context, _ *queue.Tx, story *queue.Story) ([]queue.NewJob, error) {
		jobs := make([]queue.NewJob, 0, len(types))
		for _, jobType := range types {
			jobs = append(jobs, queue.NewJob{ParentID: story.ID, JobType: jobType})
		}
		return jobs, nil
	}
}

// transition is the outcome of one committed Advance step.
type transition struct {
	story  *queue.Story
	to     queue.StoryStatus
	jobIDs []int64
}

// Advance moves the story forward as far as its completed work allows and
// returns the resulting status. It is safe to call concurrently and
// repeatedly; calls that find nothing to do are no-ops.
func (c *Coordinator) Advance(ctx context.Context, storyID int64) (queue.StoryStatus, error) {
	var status queue.StoryStatus
	for range len(c.rules) + 1 {
		step, current, err := c.step(ctx, storyID)
		if err != nil {
			return current, err
		}
		status = current
		if step == nil {
			return status, nil
		}
		status = step.to
		c.afterTransition(ctx, step)
	}
	return status, nil
}

func (c *Coordinator) step(ctx context.Context, storyID int64) (*transition, queue.StoryStatus, error) {
	var (
		result  *transition
		current queue.StoryStatus
	)
	err := c.store.WithTx(ctx, func(tx *queue.Tx) error {
		result = nil
		story, err := tx.Story(ctx, storyID)
		if err != nil {
			return err
		}
		if story == nil {
			return fmt.Errorf("story %d: %w", storyID, queue.ErrNotFound)
		}
		current = story.Status
		r, ok := c.rules[story.Status]
		if !ok {
			return nil
		}
		active, err := tx.CountActiveJobs(ctx, story.ID, r.stageJobs...)
		if err != nil {
			return err
		}
		if active > 0 {
			return nil
		}
		ready, err := r.ready(ctx, tx, story)
		if err != nil || !ready {
			return err
		}
		moved, err := tx.TransitionStory(ctx, story.ID, r.from, r.to)
		if err != nil || !moved {
			return err
		}
		step := &transition{story: story, to: r.to}
		if r.next != nil {
			jobs, err := r.next(ctx, tx, story)
			if err != nil {
				return err
			}
			if len(jobs) > 0 {
				if step.jobIDs, err = tx.InsertJobs(ctx, jobs...); err != nil {
					return err
				}
			}
		}
		result = step
		return nil
	})
	if err != nil {
		return nil, current, fmt.Errorf("advance story %d: %w", storyID, err)
	}
	return result, current, nil
}

func (c *Coordinator) afterTransition(ctx context.Context, step *transition) {
	c.logger.Info("story advanced",
		logging.String(logging.FieldEventType, "story_advanced"),
		logging.Int64(logging.FieldStoryID, step.story.ID),
		logging.String("from", string(step.story.Status)),
		logging.String("to", string(step.to)),
		logging.Int("jobs_enqueued", len(step.jobIDs)),
	)
	switch step.to {
	case queue.StoryReadyForReview:
		c.notify(ctx, notifications.EventReviewReady, step.story, "")
	case queue.StoryPublished:
		url := step.story.YouTubeURL
		c.notify(ctx, notifications.EventPublished, step.story, url)
	}
}

func (c *Coordinator) notify(ctx context.Context, event notifications.Event, story *queue.Story, url string) {
	payload := notifications.Payload{
		"storyID": strconv.FormatInt(story.ID, 10),
		"topic":   story.Topic,
	}
	if url != "" {
		payload["url"] = url
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(c.logger, "notification failed", "notification_failed",
			logging.Int64(logging.FieldStoryID, story.ID),
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// NotifyFailure reports a story that a terminal job failure moved to failed.
func (c *Coordinator) NotifyFailure(ctx context.Context, storyID int64, message string) {
	payload := notifications.Payload{"storyID": strconv.FormatInt(storyID, 10), "error": message}
	if story, err := c.store.GetStory(ctx, storyID); err == nil && story != nil {
		payload["topic"] = story.Topic
	}
	if err := c.notifier.Publish(ctx, notifications.EventStoryFailed, payload); err != nil {
		logging.WarnWithContext(c.logger, "notification failed", "notification_failed",
			logging.Int64(logging.FieldStoryID, storyID),
			logging.Error(err),
		)
	}
}

// AdvanceActive runs Advance for every story in an automatically advancing
// stage. The daemon calls it periodically so a worker that died between
// completing a job and advancing its story cannot stall the pipeline.
func (c *Coordinator) AdvanceActive(ctx context.Context) (int, error) {
	statuses := make([]queue.StoryStatus, 0, len(c.rules))
	for _, status := range queue.AllStoryStatuses() {
		if _, ok := c.rules[status]; ok {
			statuses = append(statuses, status)
		}
	}
	stories, err := c.store.ListStories(ctx, statuses...)
	if err != nil {
		return 0, err
	}
	advanced := 0
	for _, story := range stories {
		if ctx.Err() != nil {
			return advanced, ctx.Err()
		}
		status, err := c.Advance(ctx, story.ID)
		if err != nil {
			logging.WarnWithContext(c.logger, "advance failed", "story_advance_failed",
				logging.Int64(logging.FieldStoryID, story.ID),
				logging.Error(err),
			)
			continue
		}
		if status != story.Status {
			advanced++
		}
	}
	return advanced, nil
}
