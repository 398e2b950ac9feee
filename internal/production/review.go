package production

import (
	"context"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// ThumbnailDesigner handles generate_thumbnails and regenerate_thumbnail.
// Each run stores its candidates as a new version.
type ThumbnailDesigner struct {
	deps
	regenerate bool
}

// Execute generates thumbnail candidates for the story.
func (h *ThumbnailDesigner) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	existing, err := h.store.ListThumbnailOptions(ctx, story.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, string(job.JobType), "load thumbnails", "Failed to read thumbnail options", err)
	}
	count := h.cfg.Pipeline.ThumbnailOptions
	if !h.regenerate && len(existing) >= count {
		return nil
	}
	req := media.ThumbnailRequest{
		StoryID: story.ID,
		Topic:   story.Topic,
		Style:   story.Style,
		Count:   count,
	}
	if h.regenerate {
		req.Feedback = job.Payload.Feedback
		req.ReferenceURL = story.SelectedThumbnailURL
		if req.ReferenceURL == "" && len(existing) > 0 {
			req.ReferenceURL = existing[0].ImageURL
		}
	}
	thumbs, err := h.studio.Thumbnails(ctx, req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, string(job.JobType), "generate", "Media thumbnail request failed", err)
	}
	options := make([]queue.NewThumbnail, 0, len(thumbs))
	for _, thumb := range thumbs {
		options = append(options, queue.NewThumbnail{ImageURL: thumb.URL, Prompt: thumb.Prompt})
	}
	version, err := h.store.AddThumbnails(ctx, story.ID, options, req.Feedback)
	if err != nil {
		return storeFailure(job, "save thumbnails", err)
	}
	logger.Info("thumbnails stored",
		logging.String(logging.FieldEventType, "thumbnails_generated"),
		logging.Int("version", version),
		logging.Int("count", len(options)),
		logging.Bool("regenerated", h.regenerate),
	)
	return nil
}

// HealthCheck reports whether the media service is configured.
func (h *ThumbnailDesigner) HealthCheck(context.Context) stage.Health {
	name := "generate_thumbnails"
	if h.regenerate {
		name = "regenerate_thumbnail"
	}
	return stage.Require(name, h.needsStore(), h.needsStudio())
}

// Copywriter handles generate_metadata.
type Copywriter struct {
	deps
}

// Execute drafts title options, description and tags.
func (h *Copywriter) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	if story.ScriptText == "" {
		return services.Wrap(services.ErrValidation, "generate_metadata", "validate inputs", "Story has no script", nil)
	}
	meta, err := h.writer.WriteMetadata(ctx, h.brief(story), story.ScriptText, h.cfg.Pipeline.TitleOptions)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "generate_metadata", "write metadata", "LLM metadata request failed", err)
	}
	err = h.store.SaveMetadata(ctx, story.ID, meta.Titles, queue.StoryMetadata{
		Description: meta.Description,
		Tags:        meta.Tags,
	})
	if err != nil {
		return storeFailure(job, "save metadata", err)
	}
	logger.Info("metadata stored",
		logging.String(logging.FieldEventType, "metadata_generated"),
		logging.Int("titles", len(meta.Titles)),
		logging.Int("tags", len(meta.Tags)),
	)
	return nil
}

// HealthCheck reports whether the LLM is configured.
func (h *Copywriter) HealthCheck(context.Context) stage.Health {
	return stage.Require("generate_metadata", h.needsStore(), h.needsWriter())
}
