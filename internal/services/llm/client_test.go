package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

func contentServer(t *testing.T, contents ...string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		content := contents[min(calls, len(contents)-1)]
		calls++
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"finish_reason": "stop",
					"message":       map[string]any{"content": content},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server, _ := contentServer(t, "```json\n{\"ok\":true}\n```")

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientWithoutKeyIsConfigurationError(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.WriteScript(context.Background(), Brief{Topic: "The Voynich manuscript"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if services.Classify(err) != services.FailurePermanent {
		t.Fatal("expected missing key to classify as permanent")
	}
}

func TestWriteScriptReturnsScript(t *testing.T) {
	server, _ := contentServer(t, `{"script":"Scene one.\n\nScene two."}`)
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})

	script, err := client.WriteScript(context.Background(), Brief{Topic: "Roanoke", Language: "en-US", TargetMinutes: 8})
	if err != nil {
		t.Fatalf("WriteScript returned error: %v", err)
	}
	if script != "Scene one.\n\nScene two." {
		t.Fatalf("unexpected script %q", script)
	}
}

func TestWriteMetadataTrimsToRequestedCount(t *testing.T) {
	server, _ := contentServer(t, `{"titles":["A","B"," ","C","D"],"description":" desc ","tags":["history"]}`)
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})

	meta, err := client.WriteMetadata(context.Background(), Brief{Topic: "Roanoke"}, "script", 3)
	if err != nil {
		t.Fatalf("WriteMetadata returned error: %v", err)
	}
	if strings.Join(meta.Titles, ",") != "A,B,C" {
		t.Fatalf("unexpected titles %v", meta.Titles)
	}
	if meta.Description != "desc" {
		t.Fatalf("unexpected description %q", meta.Description)
	}
}

func TestWriteMetadataTooFewTitlesIsTransient(t *testing.T) {
	server, _ := contentServer(t, `{"titles":["A"],"description":"d","tags":[]}`)
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})

	_, err := client.WriteMetadata(context.Background(), Brief{Topic: "Roanoke"}, "script", 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Classify(err) != services.FailureTransient {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"text":"Olá"}`}}},
		})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	text, err := client.Translate(context.Background(), "Hello", "en-US", "pt-BR")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if text != "Olá" {
		t.Fatalf("unexpected translation %q", text)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryBadRequest(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"context length exceeded"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.ImagePrompt(context.Background(), "A ship in fog.", "cinematic", "16:9")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if services.Classify(err) != services.FailurePermanent {
		t.Fatalf("expected permanent classification, got %v", err)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	server, calls := contentServer(t, "", "", `{"prompt":"fog over a wooden ship"}`)
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	prompt, err := client.ImagePrompt(context.Background(), "A ship in fog.", "cinematic", "16:9")
	if err != nil {
		t.Fatalf("ImagePrompt returned error: %v", err)
	}
	if prompt != "fog over a wooden ship" {
		t.Fatalf("unexpected prompt %q", prompt)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
}

func TestDecodeLLMJSONExtractsFromProse(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON("Sure! Here it is: {\"ok\": true} hope this helps", &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok=true")
	}
	if err := DecodeLLMJSON("   ", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
