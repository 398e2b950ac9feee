package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
)

const userAgent = "LostArchives/1.0"

// Event names a pipeline milestone worth pushing to the operator.
type Event string

const (
	EventReviewReady Event = "review_ready"
	EventPublished   Event = "published"
	EventStoryFailed Event = "story_failed"
	EventTest        Event = "test"
)

// Payload carries event fields such as "storyID", "topic", "url" and "error".
type Payload map[string]any

// Service defines the notification surface exposed to the pipeline and workers.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventReviewReady: cfg.Notifications.Review,
			EventPublished:   cfg.Notifications.Published,
			EventStoryFailed: cfg.Notifications.Failures,
			EventTest:        true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	story := storyLabel(payload)
	switch event {
	case EventReviewReady:
		return message{
			title: "Lost Archives - Ready for Review",
			body:  fmt.Sprintf("📝 Ready for review: %s", story),
			tags:  []string{"lostarchives", "review"},
		}, true
	case EventPublished:
		url := payload.text("url")
		body := fmt.Sprintf("🚀 Published: %s", story)
		if url != "" {
			body += "\n" + url
		}
		return message{
			title: "Lost Archives - Published",
			body:  body,
			tags:  []string{"lostarchives", "published"},
			click: url,
		}, true
	case EventStoryFailed:
		reason := payload.text("error")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "Lost Archives - Failed",
			body:     fmt.Sprintf("❌ %s failed: %s", story, reason),
			tags:     []string{"lostarchives", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Lost Archives - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"lostarchives", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func storyLabel(payload Payload) string {
	topic := payload.text("topic")
	id := payload.text("storyID")
	switch {
	case topic != "" && id != "":
		return fmt.Sprintf("%s (story #%s)", topic, id)
	case topic != "":
		return topic
	case id != "":
		return "story #" + id
	default:
		return "story"
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
