package media_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tiagogladstone/the-lost-archives/internal/services"
	"github.com/tiagogladstone/the-lost-archives/internal/services/media"
)

func TestGenerateImagePostsPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/images" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected authorization %q", got)
		}
		var req media.ImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Prompt != "fog" || req.AspectRatio != "16:9" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn/img.png"})
	}))
	defer server.Close()

	client := media.NewClient(server.URL+"/", "key", server.Client())
	url, err := client.GenerateImage(context.Background(), media.ImageRequest{Prompt: "fog", AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if url != "https://cdn/img.png" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   services.FailureKind
	}{
		{http.StatusBadRequest, services.FailurePermanent},
		{http.StatusUnprocessableEntity, services.FailurePermanent},
		{http.StatusTooManyRequests, services.FailureTransient},
		{http.StatusBadGateway, services.FailureTransient},
		{http.StatusServiceUnavailable, services.FailureTransient},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))
		client := media.NewClient(server.URL, "", server.Client())
		_, err := client.Narrate(context.Background(), media.NarrationRequest{Text: "hi", Language: "en-US"})
		server.Close()

		var statusErr *media.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
			t.Fatalf("status %d: expected StatusError, got %v", tc.status, err)
		}
		if got := services.Classify(err); got != tc.want {
			t.Fatalf("status %d: got %s want %s", tc.status, got, tc.want)
		}
	}
}

func TestUnconfiguredClientIsConfigurationError(t *testing.T) {
	client := media.NewClient("", "", nil)
	_, err := client.Render(context.Background(), media.RenderRequest{Scenes: []media.RenderScene{{Order: 1}}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestThumbnailsRequiresRequestedCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"thumbnails": []map[string]string{{"url": "a"}, {"url": ""}, {"url": "b"}},
		})
	}))
	defer server.Close()

	client := media.NewClient(server.URL, "", server.Client())
	if _, err := client.Thumbnails(context.Background(), media.ThumbnailRequest{Count: 3}); err == nil {
		t.Fatal("expected error when fewer thumbnails are returned")
	}
	thumbs, err := client.Thumbnails(context.Background(), media.ThumbnailRequest{Count: 2})
	if err != nil {
		t.Fatalf("Thumbnails returned error: %v", err)
	}
	if len(thumbs) != 2 || thumbs[1].URL != "b" {
		t.Fatalf("unexpected thumbnails %+v", thumbs)
	}
}

func TestUploadDefaultsWatchURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"video_id": "abc123"})
	}))
	defer server.Close()

	client := media.NewClient(server.URL, "", server.Client())
	upload, err := client.Upload(context.Background(), media.UploadRequest{VideoURL: "v", Title: "t"})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if upload.URL != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected url %q", upload.URL)
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := media.NewClient(server.URL, "", server.Client()).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}
