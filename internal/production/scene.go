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

// Illustrator handles generate_image.
type Illustrator struct {
	deps
}

// Execute writes an image prompt for the scene and renders it.
func (h *Illustrator) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	scene, err := h.scene(ctx, job)
	if err != nil {
		return err
	}
	if scene.ImageURL != "" {
		logger.Debug("scene already illustrated", logging.Int64(logging.FieldSceneID, scene.ID))
		return nil
	}
	prompt, err := h.writer.ImagePrompt(ctx, scene.Text, story.Style, story.AspectRatio)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "generate_image", "image prompt", "LLM prompt request failed", err)
	}
	url, err := h.studio.GenerateImage(ctx, media.ImageRequest{Prompt: prompt, Style: story.Style, AspectRatio: story.AspectRatio})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "generate_image", "render image", "Media image request failed", err)
	}
	if err := h.store.SetSceneImage(ctx, scene.ID, prompt, url); err != nil {
		return storeFailure(job, "save image", err)
	}
	logger.Info("scene illustrated",
		logging.String(logging.FieldEventType, "image_generated"),
		logging.Int64(logging.FieldSceneID, scene.ID),
		logging.Int("scene_order", scene.Order),
	)
	return nil
}

// HealthCheck reports whether both collaborators are configured.
func (h *Illustrator) HealthCheck(context.Context) stage.Health {
	return stage.Require("generate_image", h.needsStore(), h.needsWriter(), h.needsStudio())
}

// Narrator handles generate_audio.
type Narrator struct {
	deps
}

// Execute narrates the scene in the story's source language.
func (h *Narrator) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	scene, err := h.scene(ctx, job)
	if err != nil {
		return err
	}
	if scene.AudioURL != "" {
		return nil
	}
	narration, err := h.studio.Narrate(ctx, media.NarrationRequest{Text: scene.Text, Language: story.SourceLanguage()})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "generate_audio", "narrate", "Media narration request failed", err)
	}
	if err := h.store.SetSceneAudio(ctx, scene.ID, narration.URL, narration.DurationSeconds); err != nil {
		return storeFailure(job, "save audio", err)
	}
	logger.Info("scene narrated",
		logging.String(logging.FieldEventType, "audio_generated"),
		logging.Int64(logging.FieldSceneID, scene.ID),
		logging.Any("duration_seconds", narration.DurationSeconds),
	)
	return nil
}

// HealthCheck reports whether the media service is configured.
func (h *Narrator) HealthCheck(context.Context) stage.Health {
	return stage.Require("generate_audio", h.needsStore(), h.needsStudio())
}

// Translator handles translate_unit.
type Translator struct {
	deps
}

// Execute translates the scene into the payload language and merges it.
func (h *Translator) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	target, err := stage.RequireLanguage(job)
	if err != nil {
		return err
	}
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	scene, err := h.scene(ctx, job)
	if err != nil {
		return err
	}
	if _, done := scene.Translations[target]; done {
		logger.Debug("translation already present", logging.String("language", target))
		return nil
	}
	source := story.SourceLanguage()
	if target == source {
		return services.Wrap(services.ErrValidation, "translate_unit", "resolve language",
			fmt.Sprintf("Target language %s is the narration language", target), nil)
	}
	text, err := h.writer.Translate(ctx, scene.Text, source, target)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "translate_unit", "translate", "LLM translation request failed", err)
	}
	if err := h.store.MergeTranslation(ctx, scene.ID, target, text); err != nil {
		return storeFailure(job, "save translation", err)
	}
	logger.Info("scene translated",
		logging.String(logging.FieldEventType, "scene_translated"),
		logging.Int64(logging.FieldSceneID, scene.ID),
		logging.String("language", target),
	)
	return nil
}

// HealthCheck reports whether the LLM is configured.
func (h *Translator) HealthCheck(context.Context) stage.Health {
	return stage.Require("translate_unit", h.needsStore(), h.needsWriter())
}
