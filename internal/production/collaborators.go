package production

import (
	"context"
	"log/slog"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/services/llm"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
)

// Writer is the text-generation collaborator.
type Writer interface {
	WriteScript(ctx context.Context, brief llm.Brief) (string, error)
	ImagePrompt(ctx context.Context, sceneText, style, aspectRatio string) (string, error)
	Translate(ctx context.Context, text, source, target string) (string, error)
	WriteMetadata(ctx context.Context, brief llm.Brief, script string, titleCount int) (llm.Metadata, error)
	Configured() bool
}

// Studio is the media-generation collaborator.
type Studio interface {
	GenerateImage(ctx context.Context, req media.ImageRequest) (string, error)
	Narrate(ctx context.Context, req media.NarrationRequest) (media.Narration, error)
	Render(ctx context.Context, req media.RenderRequest) (string, error)
	Thumbnails(ctx context.Context, req media.ThumbnailRequest) ([]media.Thumbnail, error)
	Upload(ctx context.Context, req media.UploadRequest) (media.Upload, error)
	Configured() bool
}

// deps is shared by every handler.
type deps struct {
	cfg    *config.Config
	store  *queue.Store
	writer Writer
	studio Studio
	logger *slog.Logger
}

func (d deps) withComponent(component string) deps {
	d.logger = logging.NewComponentLogger(d.logger, component)
	return d
}

func (d deps) story(ctx context.Context, job *queue.Job) (*queue.Story, error) {
	story, err := d.store.GetStory(ctx, job.ParentID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, string(job.JobType), "load story", "Failed to read story", err)
	}
	if story == nil {
		return nil, stage.MissingStory(job)
	}
	return story, nil
}

func (d deps) scene(ctx context.Context, job *queue.Job) (*queue.Scene, error) {
	sceneID, err := stage.RequireUnit(job)
	if err != nil {
		return nil, err
	}
	scene, err := d.store.GetScene(ctx, sceneID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, string(job.JobType), "load scene", "Failed to read scene", err)
	}
	if scene == nil || scene.StoryID != job.ParentID {
		return nil, services.Wrap(services.ErrNotFound, string(job.JobType), "load scene", "Scene not found for story", nil)
	}
	return scene, nil
}

func (d deps) brief(story *queue.Story) llm.Brief {
	return llm.Brief{
		Topic:         story.Topic,
		Description:   story.Description,
		Style:         story.Style,
		Language:      story.SourceLanguage(),
		TargetMinutes: story.TargetDurationMinutes,
	}
}

func storeFailure(job *queue.Job, op string, err error) error {
	return services.Wrap(services.ErrTransient, string(job.JobType), op, "Failed to persist result", err)
}

func (d deps) needsWriter() stage.Requirement {
	return stage.Requirement{Detail: "llm api_key not configured", Met: d.writer != nil && d.writer.Configured()}
}

func (d deps) needsStudio() stage.Requirement {
	return stage.Requirement{Detail: "media base_url not configured", Met: d.studio != nil && d.studio.Configured()}
}

func (d deps) needsStore() stage.Requirement {
	return stage.Requirement{Detail: "store unavailable", Met: d.store != nil}
}
