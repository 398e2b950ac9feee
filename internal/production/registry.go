package production

import (
	"log/slog"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services/llm"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// NewRegistry builds the dispatch table with HTTP collaborators from cfg.
func NewRegistry(cfg *config.Config, store *queue.Store, logger *slog.Logger) stage.Registry {
	return NewRegistryWithDependencies(cfg, store, logger, llm.NewConfiguredClient(cfg), media.NewConfiguredClient(cfg))
}

// NewRegistryWithDependencies allows injecting collaborators (used in tests).
func NewRegistryWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, writer Writer, studio Studio) stage.Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	base := deps{cfg: cfg, store: store, writer: writer, studio: studio, logger: logger}
	return stage.Registry{
		queue.JobGenerateScript:      &ScriptWriter{deps: base.withComponent("script")},
		queue.JobGenerateImage:       &Illustrator{deps: base.withComponent("image")},
		queue.JobGenerateAudio:       &Narrator{deps: base.withComponent("audio")},
		queue.JobTranslateUnit:       &Translator{deps: base.withComponent("translation")},
		queue.JobRenderOutput:        &Renderer{deps: base.withComponent("render")},
		queue.JobGenerateThumbnails:  &ThumbnailDesigner{deps: base.withComponent("thumbnails")},
		queue.JobRegenerateThumbnail: &ThumbnailDesigner{deps: base.withComponent("thumbnails"), regenerate: true},
		queue.JobGenerateMetadata:    &Copywriter{deps: base.withComponent("metadata")},
		queue.JobUploadPublish:       &Publisher{deps: base.withComponent("publish")},
	}
}
