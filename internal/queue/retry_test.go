package queue_test

import (
	"testing"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

func TestRetryPolicyDelayDoubles(t *testing.T) {
	policy := queue.RetryPolicy{BaseDelay: 30 * time.Second}
	for retry, want := range []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second, 240 * time.Second} {
		if got := policy.Delay(retry); got != want {
			t.Fatalf("Delay(%d) = %v, want %v", retry, got, want)
		}
	}
	if policy.Delay(-1) != 30*time.Second {
		t.Fatal("negative retry count should use the base delay")
	}
}

func TestRetryPolicyDecide(t *testing.T) {
	tests := []struct {
		name   string
		policy queue.RetryPolicy
		job    *queue.Job
		kind   services.FailureKind
		want   queue.RetryAction
	}{
		{"budget left", queue.RetryPolicy{BaseDelay: time.Second}, &queue.Job{RetryCount: 2, MaxRetries: 3}, services.FailureTransient, queue.ActionRequeue},
		{"budget exhausted", queue.RetryPolicy{BaseDelay: time.Second}, &queue.Job{RetryCount: 3, MaxRetries: 3}, services.FailureTransient, queue.ActionTerminate},
		{"permanent retried by default", queue.RetryPolicy{BaseDelay: time.Second}, &queue.Job{MaxRetries: 3}, services.FailurePermanent, queue.ActionRequeue},
		{"permanent fails fast when enabled", queue.RetryPolicy{BaseDelay: time.Second, FailPermanentImmediately: true}, &queue.Job{MaxRetries: 3}, services.FailurePermanent, queue.ActionTerminate},
		{"zero budget", queue.RetryPolicy{BaseDelay: time.Second}, &queue.Job{MaxRetries: 0}, services.FailureTransient, queue.ActionTerminate},
		{"nil job", queue.RetryPolicy{}, nil, services.FailureTransient, queue.ActionTerminate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.Decide(tc.job, tc.kind); got.Action != tc.want {
				t.Fatalf("Decide = %s, want %s", got.Action, tc.want)
			}
		})
	}
}

func TestResumeStatusFor(t *testing.T) {
	want := map[queue.JobType]queue.StoryStatus{
		queue.JobGenerateScript:      queue.StoryScripting,
		queue.JobTranslateUnit:       queue.StoryProducing,
		queue.JobRenderOutput:        queue.StoryRendering,
		queue.JobGenerateMetadata:    queue.StoryPostProduction,
		queue.JobUploadPublish:       queue.StoryPublishing,
		queue.JobRegenerateThumbnail: queue.StoryReadyForReview,
	}
	for jobType, status := range want {
		got, ok := queue.ResumeStatusFor(jobType)
		if !ok || got != status {
			t.Fatalf("ResumeStatusFor(%s) = %s, want %s", jobType, got, status)
		}
	}
	for _, jobType := range queue.AllJobTypes() {
		if _, ok := queue.ResumeStatusFor(jobType); !ok {
			t.Fatalf("job type %s has no resume status", jobType)
		}
	}
}
