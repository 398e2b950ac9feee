package testsupport

import (
	"context"
	"testing"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewStory creates a draft story from the config's pipeline defaults.
func NewStory(t testing.TB, store *queue.Store, cfg *config.Config, topic string) *queue.Story {
	t.Helper()

	story, err := store.CreateStory(context.Background(), queue.NewStory{
		Topic:                 topic,
		TargetDurationMinutes: cfg.Pipeline.TargetDurationMinutes,
		Languages:             cfg.Pipeline.Languages,
		Style:                 cfg.Pipeline.Style,
		AspectRatio:           cfg.Pipeline.AspectRatio,
	})
	if err != nil {
		t.Fatalf("store.CreateStory: %v", err)
	}
	return story
}

// MustClaim claims the next job of jobType and fails the test when none is eligible.
func MustClaim(t testing.TB, store *queue.Store, jobType queue.JobType, workerID string) *queue.Job {
	t.Helper()

	job, err := store.ClaimNext(context.Background(), jobType, workerID)
	if err != nil {
		t.Fatalf("ClaimNext(%s): %v", jobType, err)
	}
	if job == nil {
		t.Fatalf("ClaimNext(%s): no eligible job", jobType)
	}
	return job
}
