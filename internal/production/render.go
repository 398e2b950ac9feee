package production

import (
	"context"
	"fmt"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// Renderer handles render_output.
type Renderer struct {
	deps
}

// Execute assembles every produced scene into the final video.
func (h *Renderer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	if story.VideoURL != "" {
		return nil
	}
	scenes, err := h.store.ListScenes(ctx, story.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "render_output", "load scenes", "Failed to read scenes", err)
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrValidation, "render_output", "validate inputs", "Story has no scenes", nil)
	}
	req := media.RenderRequest{StoryID: story.ID, AspectRatio: story.AspectRatio}
	var total float64
	for _, scene := range scenes {
		if !scene.Produced() {
			return services.Wrap(services.ErrValidation, "render_output", "validate inputs",
				fmt.Sprintf("Scene %d is missing its image or audio", scene.Order), nil)
		}
		req.Scenes = append(req.Scenes, media.RenderScene{
			Order:           scene.Order,
			ImageURL:        scene.ImageURL,
			AudioURL:        scene.AudioURL,
			DurationSeconds: scene.DurationSeconds,
			Caption:         scene.Text,
		})
		total += scene.DurationSeconds
	}
	url, err := h.studio.Render(ctx, req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render_output", "render", "Media render request failed", err)
	}
	if err := h.store.SetVideoURL(ctx, story.ID, url); err != nil {
		return storeFailure(job, "save video", err)
	}
	logger.Info("video rendered",
		logging.String(logging.FieldEventType, "video_rendered"),
		logging.Int("scenes", len(scenes)),
		logging.Any("duration_seconds", total),
	)
	return nil
}

// HealthCheck reports whether the media service is configured.
func (h *Renderer) HealthCheck(context.Context) stage.Health {
	return stage.Require("render_output", h.needsStore(), h.needsStudio())
}
