package production

import (
	"context"
	"strings"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// Publisher handles upload_publish.
type Publisher struct {
	deps
}

// Execute uploads the rendered video with the operator's selections.
func (h *Publisher) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	if story.YouTubeVideoID != "" {
		logger.Info("story already uploaded", logging.String("video_id", story.YouTubeVideoID))
		return nil
	}
	var missing []string
	if story.VideoURL == "" {
		missing = append(missing, "video")
	}
	if story.SelectedTitle == "" {
		missing = append(missing, "selected title")
	}
	if story.SelectedThumbnailURL == "" {
		missing = append(missing, "selected thumbnail")
	}
	if story.Metadata == nil {
		missing = append(missing, "metadata")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "upload_publish", "validate inputs",
			"Story is missing "+strings.Join(missing, ", "), nil)
	}
	upload, err := h.studio.Upload(ctx, media.UploadRequest{
		VideoURL:     story.VideoURL,
		ThumbnailURL: story.SelectedThumbnailURL,
		Title:        story.SelectedTitle,
		Description:  story.Metadata.Description,
		Tags:         story.Metadata.Tags,
		Language:     story.SourceLanguage(),
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "upload_publish", "upload", "Media upload request failed", err)
	}
	if err := h.store.SetUpload(ctx, story.ID, upload.VideoID, upload.URL); err != nil {
		return storeFailure(job, "save upload", err)
	}
	logger.Info("story uploaded",
		logging.String(logging.FieldEventType, "story_uploaded"),
		logging.String("video_id", upload.VideoID),
		logging.String("url", upload.URL),
	)
	return nil
}

// HealthCheck reports whether the media service is configured.
func (h *Publisher) HealthCheck(context.Context) stage.Health {
	return stage.Require("upload_publish", h.needsStore(), h.needsStudio())
}
