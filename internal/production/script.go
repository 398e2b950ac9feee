package production

import (
	"context"
	"regexp"
	"strings"

	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

var sceneBreak = regexp.MustCompile(`\n[ \t]*\n`)

// SplitScenes cuts a script into scene texts on blank lines.
func SplitScenes(script string) []string {
	script = strings.ReplaceAll(script, "\r\n", "\n")
	var scenes []string
	for _, part := range sceneBreak.Split(script, -1) {
		if part = strings.TrimSpace(part); part != "" {
			scenes = append(scenes, part)
		}
	}
	return scenes
}

// ScriptWriter handles generate_script.
type ScriptWriter struct {
	deps
}

// Execute writes the narration script and replaces the story's scenes.
func (h *ScriptWriter) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	story, err := h.story(ctx, job)
	if err != nil {
		return err
	}
	script, err := h.writer.WriteScript(ctx, h.brief(story))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "generate_script", "write script", "LLM script request failed", err)
	}
	texts := SplitScenes(script)
	if len(texts) == 0 {
		return services.Wrap(services.ErrValidation, "generate_script", "split scenes", "Script contains no scenes", nil)
	}
	if _, err := h.store.SaveScript(ctx, story.ID, script, texts); err != nil {
		return storeFailure(job, "save script", err)
	}
	logger.Info("script stored",
		logging.String(logging.FieldEventType, "script_generated"),
		logging.Int("scenes", len(texts)),
		logging.Int("characters", len(script)),
	)
	return nil
}

// HealthCheck reports whether the LLM is configured.
func (h *ScriptWriter) HealthCheck(context.Context) stage.Health {
	return stage.Require("generate_script", h.needsStore(), h.needsWriter())
}
