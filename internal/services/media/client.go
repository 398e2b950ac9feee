package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

// HTTPDoer describes the HTTP client used by the media service client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the HTTP-backed media service client.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewConfiguredClient builds a client from config. Missing base URLs surface
// as configuration errors on first use rather than at startup so the CLI can
// run without a media service.
func NewConfiguredClient(cfg *config.Config) *Client {
	timeout := 10 * time.Minute
	if cfg != nil && cfg.Media.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Media.TimeoutSeconds) * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if cfg == nil {
		return NewClient("", "", client)
	}
	return NewClient(cfg.Media.BaseURL, cfg.Media.APIKey, client)
}

// NewClient constructs a client against baseURL.
func NewClient(baseURL, apiKey string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// StatusError is returned for non-2xx responses from the media service.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.Join(strings.Fields(e.Body), " ")
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("media %s: http %d: %s", e.Operation, e.StatusCode, body)
}

// ErrorKind classifies the failure for the retry policy.
func (e *StatusError) ErrorKind() string {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return "transient"
	case e.StatusCode == http.StatusNotFound:
		return "not_found"
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return "configuration"
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return "validation"
	default:
		return "transient"
	}
}

// HealthCheck verifies the media service answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "media", "health", "media.base_url not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build media health request: %w", err)
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "media", "health", "request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Operation: "health", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) post(ctx context.Context, operation, path string, payload, out any) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "media", operation, "media.base_url not configured", nil)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, "media", operation, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build media %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return services.Wrap(services.ErrTransient, "media", operation, "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrTransient, "media", operation, "read response", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return services.Wrap(services.ErrTransient, "media", operation, "decode response", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func requireURL(operation, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", services.Wrap(services.ErrTransient, "media", operation, "service returned no url", nil)
	}
	return value, nil
}
