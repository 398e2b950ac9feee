package production_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/production"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/services/llm"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
	"github.com/tiagogladstone/the-lost-archives/internal/stage"
	"github.com/tiagogladstone/the-lost-archives/internal/testsupport"
)

type fakeWriter struct {
	mu           sync.Mutex
	script       string
	scriptErr    error
	translations int
	configured   bool
}

func (f *fakeWriter) WriteScript(_ context.Context, brief llm.Brief) (string, error) {
	if f.scriptErr != nil {
		return "", f.scriptErr
	}
	return f.script, nil
}

func (f *fakeWriter) ImagePrompt(_ context.Context, text, style, aspect string) (string, error) {
	return fmt.Sprintf("%s %s: %s", style, aspect, text), nil
}

func (f *fakeWriter) Translate(_ context.Context, text, _, target string) (string, error) {
	f.mu.Lock()
	f.translations++
	f.mu.Unlock()
	return "[" + target + "] " + text, nil
}

func (f *fakeWriter) WriteMetadata(_ context.Context, brief llm.Brief, _ string, count int) (llm.Metadata, error) {
	titles := make([]string, count)
	for i := range titles {
		titles[i] = fmt.Sprintf("%s #%d", brief.Topic, i+1)
	}
	return llm.Metadata{Titles: titles, Description: "About " + brief.Topic, Tags: []string{"history"}}, nil
}

func (f *fakeWriter) Configured() bool { return f.configured }

type fakeStudio struct {
	mu         sync.Mutex
	renders    []media.RenderRequest
	thumbReqs  []media.ThumbnailRequest
	uploads    int
	configured bool
}

func (f *fakeStudio) GenerateImage(_ context.Context, req media.ImageRequest) (string, error) {
	return "https://cdn.test/img/" + fmt.Sprint(len(req.Prompt)) + ".png", nil
}

func (f *fakeStudio) Narrate(_ context.Context, req media.NarrationRequest) (media.Narration, error) {
	return media.Narration{URL: "https://cdn.test/audio/" + req.Language + ".mp3", DurationSeconds: 9.5}, nil
}

func (f *fakeStudio) Render(_ context.Context, req media.RenderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, req)
	return "https://cdn.test/video.mp4", nil
}

func (f *fakeStudio) Thumbnails(_ context.Context, req media.ThumbnailRequest) ([]media.Thumbnail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbReqs = append(f.thumbReqs, req)
	out := make([]media.Thumbnail, req.Count)
	for i := range out {
		out[i] = media.Thumbnail{URL: fmt.Sprintf("https://cdn.test/thumb/%d-%d.png", len(f.thumbReqs), i), Prompt: "p"}
	}
	return out, nil
}

func (f *fakeStudio) Upload(_ context.Context, req media.UploadRequest) (media.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	return media.Upload{VideoID: "vid123", URL: "https://youtu.be/vid123"}, nil
}

func (f *fakeStudio) Configured() bool { return f.configured }

type fixture struct {
	cfg      *config.Config
	store    *queue.Store
	writer   *fakeWriter
	studio   *fakeStudio
	registry stage.Registry
	story    *queue.Story
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	writer := &fakeWriter{script: "First scene.\n\nSecond scene.\n \nThird scene.", configured: true}
	studio := &fakeStudio{configured: true}
	return &fixture{
		cfg:      cfg,
		store:    store,
		writer:   writer,
		studio:   studio,
		registry: production.NewRegistryWithDependencies(cfg, store, nil, writer, studio),
		story:    testsupport.NewStory(t, store, cfg, "The Phaistos Disc"),
	}
}

func (f *fixture) run(t *testing.T, jobType queue.JobType, unitID int64, payload queue.JobPayload) error {
	t.Helper()
	handler, ok := f.registry[jobType]
	if !ok {
		t.Fatalf("no handler for %s", jobType)
	}
	job := &queue.Job{ID: 1, ParentID: f.story.ID, UnitID: unitID, JobType: jobType, Payload: payload}
	return handler.Execute(context.Background(), job)
}

func (f *fixture) mustRun(t *testing.T, jobType queue.JobType, unitID int64, payload queue.JobPayload) {
	t.Helper()
	if err := f.run(t, jobType, unitID, payload); err != nil {
		t.Fatalf("%s: %v", jobType, err)
	}
}

func (f *fixture) scenes(t *testing.T) []*queue.Scene {
	t.Helper()
	scenes, err := f.store.ListScenes(context.Background(), f.story.ID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	return scenes
}

func (f *fixture) reload(t *testing.T) *queue.Story {
	t.Helper()
	story, err := f.store.GetStory(context.Background(), f.story.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	return story
}

func TestSplitScenes(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"blank lines", "a\n\nb\n\nc", 3},
		{"windows newlines", "a\r\n\r\nb", 2},
		{"whitespace separator", "a\n  \t\nb", 2},
		{"single newline stays in scene", "a\nstill a\n\nb", 2},
		{"empty", "  \n\n ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := production.SplitScenes(tt.script); len(got) != tt.want {
				t.Fatalf("SplitScenes(%q) = %q, want %d scenes", tt.script, got, tt.want)
			}
		})
	}
}

func TestRegistryCoversEveryJobType(t *testing.T) {
	f := newFixture(t)
	types := f.registry.JobTypes()
	if len(types) != len(queue.AllJobTypes()) {
		t.Fatalf("registry covers %v", types)
	}
}

func TestScriptHandlerReplacesScenesOnRerun(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	if got := len(f.scenes(t)); got != 3 {
		t.Fatalf("expected 3 scenes, got %d", got)
	}
	f.writer.script = "Only scene."
	f.mustRun(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	scenes := f.scenes(t)
	if len(scenes) != 1 || scenes[0].Order != 1 || scenes[0].Text != "Only scene." {
		t.Fatalf("unexpected scenes after rerun: %+v", scenes)
	}
}

func TestScriptHandlerRejectsEmptyScript(t *testing.T) {
	f := newFixture(t)
	f.writer.script = "\n\n"
	err := f.run(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	if !errors.Is(err, services.ErrValidation) || services.Classify(err) != services.FailurePermanent {
		t.Fatalf("expected permanent validation error, got %v", err)
	}
}

func TestScriptHandlerSurfacesWriterFailure(t *testing.T) {
	f := newFixture(t)
	f.writer.scriptErr = services.Wrap(services.ErrTransient, "llm", "write script", "rate limited", nil)
	err := f.run(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	if err == nil || services.Classify(err) != services.FailureTransient {
		t.Fatalf("expected transient failure, got %v", err)
	}
}

func TestSceneHandlersStoreAssetsAndTranslations(t *testing.T) {
	f := newFixture(t, testsupport.WithLanguages("en-US", "pt-BR"))
	f.mustRun(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	for _, scene := range f.scenes(t) {
		f.mustRun(t, queue.JobGenerateImage, scene.ID, queue.JobPayload{})
		f.mustRun(t, queue.JobGenerateAudio, scene.ID, queue.JobPayload{})
		f.mustRun(t, queue.JobTranslateUnit, scene.ID, queue.JobPayload{Language: "pt-BR"})
		f.mustRun(t, queue.JobTranslateUnit, scene.ID, queue.JobPayload{Language: "pt-BR"})
	}
	for _, scene := range f.scenes(t) {
		if !scene.Produced() || scene.ImagePrompt == "" || scene.DurationSeconds != 9.5 {
			t.Fatalf("scene not produced: %+v", scene)
		}
		if !strings.HasPrefix(scene.AudioURL, "https://cdn.test/audio/en-US") {
			t.Fatalf("narration not in source language: %s", scene.AudioURL)
		}
		if scene.Translations["pt-BR"] != "[pt-BR] "+scene.Text {
			t.Fatalf("unexpected translation %v", scene.Translations)
		}
	}
	if f.writer.translations != 3 {
		t.Fatalf("expected repeated translations to be skipped, got %d calls", f.writer.translations)
	}
}

func TestSceneHandlersValidateJob(t *testing.T) {
	f := newFixture(t)
	if err := f.run(t, queue.JobGenerateImage, 0, queue.JobPayload{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected missing unit validation error, got %v", err)
	}
	if err := f.run(t, queue.JobGenerateAudio, 4242, queue.JobPayload{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected missing scene, got %v", err)
	}
	f.mustRun(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	scene := f.scenes(t)[0]
	if err := f.run(t, queue.JobTranslateUnit, scene.ID, queue.JobPayload{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected missing language, got %v", err)
	}
	if err := f.run(t, queue.JobTranslateUnit, scene.ID, queue.JobPayload{Language: "en-US"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected source language rejection, got %v", err)
	}
}

func TestRenderRequiresEveryScene(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	scenes := f.scenes(t)
	f.mustRun(t, queue.JobGenerateImage, scenes[0].ID, queue.JobPayload{})
	f.mustRun(t, queue.JobGenerateAudio, scenes[0].ID, queue.JobPayload{})

	if err := f.run(t, queue.JobRenderOutput, 0, queue.JobPayload{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unproduced scenes, got %v", err)
	}
	for _, scene := range scenes[1:] {
		f.mustRun(t, queue.JobGenerateImage, scene.ID, queue.JobPayload{})
		f.mustRun(t, queue.JobGenerateAudio, scene.ID, queue.JobPayload{})
	}
	f.mustRun(t, queue.JobRenderOutput, 0, queue.JobPayload{})
	f.mustRun(t, queue.JobRenderOutput, 0, queue.JobPayload{})
	if len(f.studio.renders) != 1 || len(f.studio.renders[0].Scenes) != 3 {
		t.Fatalf("expected one render of 3 scenes, got %+v", f.studio.renders)
	}
	if f.reload(t).VideoURL == "" {
		t.Fatal("video url not stored")
	}
}

func TestReviewMaterialAndPublish(t *testing.T) {
	f := newFixture(t, testsupport.WithOptionCounts(2, 2))
	ctx := context.Background()
	f.mustRun(t, queue.JobGenerateScript, 0, queue.JobPayload{})
	if err := f.store.SetVideoURL(ctx, f.story.ID, "https://cdn.test/video.mp4"); err != nil {
		t.Fatalf("SetVideoURL: %v", err)
	}

	f.mustRun(t, queue.JobGenerateThumbnails, 0, queue.JobPayload{})
	f.mustRun(t, queue.JobGenerateThumbnails, 0, queue.JobPayload{})
	f.mustRun(t, queue.JobGenerateMetadata, 0, queue.JobPayload{})
	thumbs, _ := f.store.ListThumbnailOptions(ctx, f.story.ID)
	titles, _ := f.store.ListTitleOptions(ctx, f.story.ID)
	if len(thumbs) != 2 || len(titles) != 2 {
		t.Fatalf("expected 2 thumbnails and 2 titles, got %d and %d", len(thumbs), len(titles))
	}

	if err := f.run(t, queue.JobUploadPublish, 0, queue.JobPayload{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected upload without selection to fail validation, got %v", err)
	}

	f.mustRun(t, queue.JobRegenerateThumbnail, 0, queue.JobPayload{Feedback: "darker"})
	last := f.studio.thumbReqs[len(f.studio.thumbReqs)-1]
	if last.Feedback != "darker" || last.ReferenceURL == "" {
		t.Fatalf("regeneration request missing feedback or reference: %+v", last)
	}
	thumbs, _ = f.store.ListThumbnailOptions(ctx, f.story.ID)
	if len(thumbs) != 4 || thumbs[0].Version != 2 || thumbs[0].Feedback != "darker" {
		t.Fatalf("expected a second thumbnail version first, got %+v", thumbs[0])
	}

	err := f.store.WithTx(ctx, func(tx *queue.Tx) error {
		for _, step := range [][2]queue.StoryStatus{
			{queue.StoryDraft, queue.StoryScripting},
			{queue.StoryScripting, queue.StoryProducing},
			{queue.StoryProducing, queue.StoryRendering},
			{queue.StoryRendering, queue.StoryPostProduction},
			{queue.StoryPostProduction, queue.StoryReadyForReview},
		} {
			if _, err := tx.TransitionStory(ctx, f.story.ID, step[0], step[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := f.store.SelectForReview(ctx, f.story.ID, titles[1].ID, thumbs[0].ID); err != nil {
		t.Fatalf("SelectForReview: %v", err)
	}

	f.mustRun(t, queue.JobUploadPublish, 0, queue.JobPayload{})
	f.mustRun(t, queue.JobUploadPublish, 0, queue.JobPayload{})
	story := f.reload(t)
	if story.YouTubeVideoID != "vid123" || story.YouTubeURL == "" {
		t.Fatalf("upload not stored: %+v", story)
	}
	if f.studio.uploads != 1 {
		t.Fatalf("expected a single upload, got %d", f.studio.uploads)
	}
}

func TestMissingStoryIsPermanent(t *testing.T) {
	f := newFixture(t)
	job := &queue.Job{ID: 1, ParentID: 9999, JobType: queue.JobRenderOutput}
	err := f.registry[queue.JobRenderOutput].Execute(context.Background(), job)
	if services.Classify(err) != services.FailurePermanent {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}

func TestHealthChecksReportMissingCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry := production.NewRegistryWithDependencies(cfg, store, nil, &fakeWriter{}, &fakeStudio{configured: true})

	if health := registry[queue.JobGenerateAudio].HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("audio needs only the studio: %+v", health)
	}
	health := registry[queue.JobGenerateImage].HealthCheck(context.Background())
	if health.Ready || !strings.Contains(health.Detail, "llm") {
		t.Fatalf("expected image handler to report missing llm, got %+v", health)
	}

	defaults := production.NewRegistry(cfg, store, nil)
	if health := defaults[queue.JobUploadPublish].HealthCheck(context.Background()); health.Ready {
		t.Fatalf("expected unconfigured media service, got %+v", health)
	}
}
