package stage

import (
	"errors"
	"testing"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

func TestRequireUnit(t *testing.T) {
	id, err := RequireUnit(&queue.Job{JobType: queue.JobGenerateImage, UnitID: 4})
	if err != nil || id != 4 {
		t.Fatalf("unexpected result %d %v", id, err)
	}
	if _, err := RequireUnit(&queue.Job{JobType: queue.JobGenerateImage}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequireLanguage(t *testing.T) {
	lang, err := RequireLanguage(&queue.Job{Payload: queue.JobPayload{Language: " pt-BR "}})
	if err != nil || lang != "pt-BR" {
		t.Fatalf("unexpected result %q %v", lang, err)
	}
	if _, err := RequireLanguage(&queue.Job{}); services.Classify(err) != services.FailurePermanent {
		t.Fatalf("expected permanent failure, got %v", err)
	}
}

func TestMissingStoryIsNotFound(t *testing.T) {
	err := MissingStory(&queue.Job{ParentID: 9, JobType: queue.JobRenderOutput})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegistryJobTypesFollowPipelineOrder(t *testing.T) {
	r := Registry{queue.JobUploadPublish: nil, queue.JobGenerateScript: nil}
	types := r.JobTypes()
	if len(types) != 2 || types[0] != queue.JobGenerateScript || types[1] != queue.JobUploadPublish {
		t.Fatalf("unexpected order %v", types)
	}
}

func TestRequireJoinsUnmetDetails(t *testing.T) {
	h := Require("render_output", Requirement{Detail: "media not configured"}, Requirement{Detail: "llm ok", Met: true}, Requirement{Detail: "store missing"})
	if h.Ready || h.Detail != "media not configured; store missing" {
		t.Fatalf("unexpected health %+v", h)
	}
	if !Require("x", Requirement{Met: true}).Ready {
		t.Fatal("expected ready when every requirement is met")
	}
}
