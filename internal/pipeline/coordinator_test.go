package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/notifications"
	"github.com/tiagogladstone/the-lost-archives/internal/pipeline"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) Events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	coord    *pipeline.Coordinator
	notifier *recordingNotifier
	clock    *testsupport.Clock
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	clock := testsupport.NewClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	notifier := &recordingNotifier{}
	return &harness{
		cfg:      cfg,
		store:    store,
		coord:    pipeline.NewCoordinator(cfg, store, notifier, nil),
		notifier: notifier,
		clock:    clock,
	}
}

func (h *harness) startStory(t *testing.T, topic string) *queue.Story {
	t.Helper()
	story, err := h.coord.CreateAndStart(context.Background(), pipeline.Brief{Topic: topic})
	if err != nil {
		t.Fatalf("CreateAndStart: %v", err)
	}
	return story
}

func (h *harness) jobs(t *testing.T, storyID int64, types ...queue.JobType) []*queue.Job {
	t.Helper()
	jobs, err := h.store.ListJobs(context.Background(), queue.JobFilter{StoryID: storyID, Types: types})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	return jobs
}

func (h *harness) status(t *testing.T, storyID int64) queue.StoryStatus {
	t.Helper()
	story, err := h.store.GetStory(context.Background(), storyID)
	if err != nil || story == nil {
		t.Fatalf("GetStory(%d): %v", storyID, err)
	}
	return story.Status
}

// finish completes a claimed job and advances its story, the way a worker does.
func (h *harness) finish(t *testing.T, job *queue.Job, workerID string) queue.StoryStatus {
	t.Helper()
	ctx := context.Background()
	if err := h.store.CompleteJob(ctx, job.ID, workerID); err != nil {
		t.Fatalf("CompleteJob(%d): %v", job.ID, err)
	}
	status, err := h.coord.Advance(ctx, job.ParentID)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	return status
}

func (h *harness) runScript(t *testing.T, story *queue.Story, scenes int) queue.StoryStatus {
	t.Helper()
	job := testsupport.MustClaim(t, h.store, queue.JobGenerateScript, "w-script")
	texts := make([]string, scenes)
	for i := range texts {
		texts[i] = fmt.Sprintf("Scene %d narration.", i+1)
	}
	if _, err := h.store.SaveScript(context.Background(), story.ID, "full script", texts); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	return h.finish(t, job, "w-script")
}

func (h *harness) produceAll(t *testing.T, skipLast bool) queue.StoryStatus {
	t.Helper()
	ctx := context.Background()
	var last queue.StoryStatus
	for _, jobType := range []queue.JobType{queue.JobGenerateImage, queue.JobGenerateAudio, queue.JobTranslateUnit} {
		for {
			job, err := h.store.ClaimNext(ctx, jobType, "w-produce")
			if err != nil {
				t.Fatalf("ClaimNext: %v", err)
			}
			if job == nil {
				break
			}
			active, err := h.store.CountActiveJobs(ctx, job.ParentID,
				queue.JobGenerateImage, queue.JobGenerateAudio, queue.JobTranslateUnit)
			if err != nil {
				t.Fatalf("CountActiveJobs: %v", err)
			}
			if skipLast && active == 1 {
				return last
			}
			switch jobType {
			case queue.JobGenerateImage:
				err = h.store.SetSceneImage(ctx, job.UnitID, "prompt", fmt.Sprintf("https://cdn.test/img/%d.png", job.UnitID))
			case queue.JobGenerateAudio:
				err = h.store.SetSceneAudio(ctx, job.UnitID, fmt.Sprintf("https://cdn.test/audio/%d.mp3", job.UnitID), 12.5)
			case queue.JobTranslateUnit:
				err = h.store.MergeTranslation(ctx, job.UnitID, job.Payload.Language, "traducción")
			}
			if err != nil {
				t.Fatalf("store %s output: %v", jobType, err)
			}
			last = h.finish(t, job, "w-produce")
		}
	}
	return last
}

func TestScriptCompletionFansOutPerScene(t *testing.T) {
	h := newHarness(t)
	story := h.startStory(t, "The Voynich Manuscript")
	if story.Status != queue.StoryScripting {
		t.Fatalf("expected scripting after start, got %s", story.Status)
	}

	if status := h.runScript(t, story, 2); status != queue.StoryProducing {
		t.Fatalf("expected producing, got %s", status)
	}
	if got := len(h.jobs(t, story.ID, queue.JobGenerateImage)); got != 2 {
		t.Fatalf("expected 2 image jobs, got %d", got)
	}
	if got := len(h.jobs(t, story.ID, queue.JobGenerateAudio)); got != 2 {
		t.Fatalf("expected 2 audio jobs, got %d", got)
	}
	if got := len(h.jobs(t, story.ID, queue.JobTranslateUnit)); got != 0 {
		t.Fatalf("expected no translation jobs for a single language, got %d", got)
	}
}

func TestTranslationJobsPerTargetLanguage(t *testing.T) {
	h := newHarness(t, testsupport.WithLanguages("en-US", "pt-BR", "es"))
	story := h.startStory(t, "Atlantis")
	h.runScript(t, story, 3)

	jobs := h.jobs(t, story.ID, queue.JobTranslateUnit)
	if len(jobs) != 6 {
		t.Fatalf("expected 6 translation jobs, got %d", len(jobs))
	}
	langs := map[string]int{}
	for _, job := range jobs {
		langs[job.Payload.Language]++
	}
	if langs["pt-BR"] != 3 || langs["es"] != 3 {
		t.Fatalf("unexpected language spread %v", langs)
	}

	if status := h.produceAll(t, false); status != queue.StoryRendering {
		t.Fatalf("expected rendering, got %s", status)
	}
	scenes, err := h.store.ListScenes(context.Background(), story.ID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	for _, scene := range scenes {
		if len(scene.Translations) != 2 {
			t.Fatalf("scene %d translations = %v", scene.ID, scene.Translations)
		}
	}
}

func TestProductionFanInWaitsForEveryJob(t *testing.T) {
	h := newHarness(t)
	story := h.startStory(t, "The Lost Colony of Roanoke")
	h.runScript(t, story, 2)

	if status := h.produceAll(t, true); status != queue.StoryProducing {
		t.Fatalf("expected producing with one job outstanding, got %s", status)
	}
	if got := len(h.jobs(t, story.ID, queue.JobRenderOutput)); got != 0 {
		t.Fatalf("render job inserted early: %d", got)
	}

	// Finish the held job.
	held := h.jobs(t, story.ID, queue.JobGenerateImage, queue.JobGenerateAudio)
	var pending *queue.Job
	for _, job := range held {
		if job.Status == queue.JobProcessing {
			pending = job
		}
	}
	if pending == nil {
		t.Fatal("expected one processing job")
	}
	ctx := context.Background()
	if pending.JobType == queue.JobGenerateImage {
		_ = h.store.SetSceneImage(ctx, pending.UnitID, "prompt", "https://cdn.test/late.png")
	} else {
		_ = h.store.SetSceneAudio(ctx, pending.UnitID, "https://cdn.test/late.mp3", 10)
	}
	if status := h.finish(t, pending, "w-produce"); status != queue.StoryRendering {
		t.Fatalf("expected rendering, got %s", status)
	}
	if got := len(h.jobs(t, story.ID, queue.JobRenderOutput)); got != 1 {
		t.Fatalf("expected exactly 1 render job, got %d", got)
	}
}

func TestRenderStartsWhileTranslationsQueued(t *testing.T) {
	h := newHarness(t, testsupport.WithLanguages("en-US", "pt-BR"))
	story := h.startStory(t, "The Antikythera Mechanism")
	h.runScript(t, story, 2)
	ctx := context.Background()

	var status queue.StoryStatus
	for _, jobType := range []queue.JobType{queue.JobGenerateImage, queue.JobGenerateAudio} {
		for range 2 {
			job := testsupport.MustClaim(t, h.store, jobType, "w-produce")
			var err error
			if jobType == queue.JobGenerateImage {
				err = h.store.SetSceneImage(ctx, job.UnitID, "prompt", fmt.Sprintf("https://cdn.test/img/%d.png", job.UnitID))
			} else {
				err = h.store.SetSceneAudio(ctx, job.UnitID, fmt.Sprintf("https://cdn.test/audio/%d.mp3", job.UnitID), 9)
			}
			if err != nil {
				t.Fatalf("store %s output: %v", jobType, err)
			}
			status = h.finish(t, job, "w-produce")
		}
	}

	if status != queue.StoryRendering {
		t.Fatalf("expected rendering with translations outstanding, got %s", status)
	}
	if got := len(h.jobs(t, story.ID, queue.JobRenderOutput)); got != 1 {
		t.Fatalf("expected 1 render job, got %d", got)
	}
	for _, job := range h.jobs(t, story.ID, queue.JobTranslateUnit) {
		if job.Status != queue.JobQueued {
			t.Fatalf("translation job %d is %s, expected queued", job.ID, job.Status)
		}
	}
}

func TestAdvanceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	story := h.startStory(t, "Nazca Lines")
	h.runScript(t, story, 2)
	h.produceAll(t, false)

	ctx := context.Background()
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.coord.Advance(ctx, story.ID); err != nil {
				t.Errorf("Advance: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(h.jobs(t, story.ID, queue.JobRenderOutput)); got != 1 {
		t.Fatalf("expected a single render job after repeated advance, got %d", got)
	}
	if got := len(h.jobs(t, story.ID, queue.JobGenerateImage)); got != 2 {
		t.Fatalf("expected production jobs untouched, got %d image jobs", got)
	}
}

func TestFullPipelineToPublished(t *testing.T) {
	h := newHarness(t, testsupport.WithOptionCounts(2, 2))
	ctx := context.Background()
	story := h.startStory(t, "Göbekli Tepe")
	h.runScript(t, story, 1)
	h.produceAll(t, false)

	render := testsupport.MustClaim(t, h.store, queue.JobRenderOutput, "w-render")
	if err := h.store.SetVideoURL(ctx, story.ID, "https://cdn.test/video.mp4"); err != nil {
		t.Fatalf("SetVideoURL: %v", err)
	}
	if status := h.finish(t, render, "w-render"); status != queue.StoryPostProduction {
		t.Fatalf("expected post_production, got %s", status)
	}

	thumbs := testsupport.MustClaim(t, h.store, queue.JobGenerateThumbnails, "w-post")
	if _, err := h.store.AddThumbnails(ctx, story.ID, []queue.NewThumbnail{
		{ImageURL: "https://cdn.test/t1.png"}, {ImageURL: "https://cdn.test/t2.png"},
	}, ""); err != nil {
		t.Fatalf("AddThumbnails: %v", err)
	}
	if status := h.finish(t, thumbs, "w-post"); status != queue.StoryPostProduction {
		t.Fatalf("expected post_production while metadata pending, got %s", status)
	}
	meta := testsupport.MustClaim(t, h.store, queue.JobGenerateMetadata, "w-post")
	if err := h.store.SaveMetadata(ctx, story.ID, []string{"Title A", "Title B"}, queue.StoryMetadata{Description: "d"}); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	if status := h.finish(t, meta, "w-post"); status != queue.StoryReadyForReview {
		t.Fatalf("expected ready_for_review, got %s", status)
	}

	if err := h.coord.Publish(ctx, story.ID); !errors.Is(err, pipeline.ErrInvalidState) {
		t.Fatalf("expected publish without selection to fail, got %v", err)
	}
	titles, _ := h.store.ListTitleOptions(ctx, story.ID)
	options, _ := h.store.ListThumbnailOptions(ctx, story.ID)
	if err := h.coord.SelectForReview(ctx, story.ID, titles[0].ID, options[0].ID); err != nil {
		t.Fatalf("SelectForReview: %v", err)
	}

	regenID, err := h.coord.RegenerateThumbnail(ctx, story.ID, "warmer colours")
	if err != nil {
		t.Fatalf("RegenerateThumbnail: %v", err)
	}
	if _, err := h.coord.RegenerateThumbnail(ctx, story.ID, "again"); !errors.Is(err, pipeline.ErrInvalidState) {
		t.Fatalf("expected second regeneration to be rejected, got %v", err)
	}
	if err := h.coord.Publish(ctx, story.ID); !errors.Is(err, pipeline.ErrInvalidState) {
		t.Fatalf("expected publish during regeneration to fail, got %v", err)
	}
	regen := testsupport.MustClaim(t, h.store, queue.JobRegenerateThumbnail, "w-post")
	if regen.ID != regenID || regen.Payload.Feedback != "warmer colours" {
		t.Fatalf("unexpected regeneration job %+v", regen)
	}
	if status := h.finish(t, regen, "w-post"); status != queue.StoryReadyForReview {
		t.Fatalf("regeneration must not move the story, got %s", status)
	}

	if err := h.coord.Publish(ctx, story.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	upload := testsupport.MustClaim(t, h.store, queue.JobUploadPublish, "w-upload")
	if err := h.store.SetUpload(ctx, story.ID, "abc123", "https://youtu.be/abc123"); err != nil {
		t.Fatalf("SetUpload: %v", err)
	}
	if status := h.finish(t, upload, "w-upload"); status != queue.StoryPublished {
		t.Fatalf("expected published, got %s", status)
	}

	events := h.notifier.Events()
	if len(events) != 2 || events[0] != notifications.EventReviewReady || events[1] != notifications.EventPublished {
		t.Fatalf("unexpected notifications %v", events)
	}
}

func TestRenderFailureStopsPipeline(t *testing.T) {
	h := newHarness(t, testsupport.WithRetry(3, 30))
	ctx := context.Background()
	story := h.startStory(t, "Baghdad Battery")
	h.runScript(t, story, 1)
	h.produceAll(t, false)

	policy := queue.RetryPolicy{BaseDelay: 30 * time.Second}
	for {
		job := testsupport.MustClaim(t, h.store, queue.JobRenderOutput, "w-render")
		decision := policy.Decide(job, services.FailureTransient)
		if decision.Action == queue.ActionTerminate {
			result, err := h.store.FailJob(ctx, job.ID, "w-render", "renderer crashed")
			if err != nil {
				t.Fatalf("FailJob: %v", err)
			}
			if !result.StoryFailed {
				t.Fatal("expected story to fail")
			}
			break
		}
		if _, err := h.store.RequeueJob(ctx, job.ID, "w-render", decision.Delay, "renderer crashed"); err != nil {
			t.Fatalf("RequeueJob: %v", err)
		}
		h.clock.Advance(decision.Delay)
	}

	if status, err := h.coord.Advance(ctx, story.ID); err != nil || status != queue.StoryFailed {
		t.Fatalf("expected failed story to stay failed, got %s (%v)", status, err)
	}
	if got := len(h.jobs(t, story.ID, queue.JobGenerateThumbnails, queue.JobGenerateMetadata)); got != 0 {
		t.Fatalf("post-production jobs inserted after failure: %d", got)
	}

	result, err := h.coord.Retry(ctx, story.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if result.Status != queue.StoryRendering || len(result.JobIDs) != 1 {
		t.Fatalf("unexpected retry result %+v", result)
	}
}

func TestCreateStoryAppliesDefaultsAndValidates(t *testing.T) {
	h := newHarness(t, testsupport.WithLanguages("en-US", "pt-BR"))
	ctx := context.Background()

	story, err := h.coord.CreateStory(ctx, pipeline.Brief{Topic: "  Antikythera  ", Languages: []string{"EN-us", "es", "en-US"}})
	if err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	if story.Topic != "Antikythera" || story.Status != queue.StoryDraft {
		t.Fatalf("unexpected story %+v", story)
	}
	if len(story.Languages) != 2 || story.Languages[0] != "en-US" || story.Languages[1] != "es" {
		t.Fatalf("languages not canonicalized: %v", story.Languages)
	}
	if story.Style != h.cfg.Pipeline.Style || story.TargetDurationMinutes != h.cfg.Pipeline.TargetDurationMinutes {
		t.Fatalf("defaults not applied: %+v", story)
	}

	defaulted, err := h.coord.CreateStory(ctx, pipeline.Brief{Topic: "Tartessos"})
	if err != nil {
		t.Fatalf("CreateStory: %v", err)
	}
	if len(defaulted.Languages) != 2 || defaulted.Languages[1] != "pt-BR" {
		t.Fatalf("expected configured languages, got %v", defaulted.Languages)
	}

	bad := []pipeline.Brief{
		{Topic: ""},
		{Topic: "x", Style: "vaporwave"},
		{Topic: "x", AspectRatio: "5:4"},
		{Topic: "x", Languages: []string{"not a tag!"}},
		{Topic: "x", TargetDurationMinutes: -1},
	}
	for _, brief := range bad {
		if _, err := h.coord.CreateStory(ctx, brief); err == nil {
			t.Fatalf("expected %+v to be rejected", brief)
		}
	}

	if err := h.coord.Start(ctx, story.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.coord.Start(ctx, story.ID); !errors.Is(err, pipeline.ErrInvalidState) {
		t.Fatalf("expected second start to be rejected, got %v", err)
	}
	if err := h.coord.Start(ctx, 9999); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected missing story, got %v", err)
	}
}

func TestAdvanceActiveSettlesStalledStories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	story := h.startStory(t, "Mohenjo-daro")

	job := testsupport.MustClaim(t, h.store, queue.JobGenerateScript, "w-script")
	if _, err := h.store.SaveScript(ctx, story.ID, "script", []string{"one"}); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	// Worker completes but dies before advancing.
	if err := h.store.CompleteJob(ctx, job.ID, "w-script"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if h.status(t, story.ID) != queue.StoryScripting {
		t.Fatal("story moved without advance")
	}

	advanced, err := h.coord.AdvanceActive(ctx)
	if err != nil {
		t.Fatalf("AdvanceActive: %v", err)
	}
	if advanced != 1 || h.status(t, story.ID) != queue.StoryProducing {
		t.Fatalf("expected story advanced to producing, got %d / %s", advanced, h.status(t, story.ID))
	}
}
