package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

// Brief describes the story a script is written for.
type Brief struct {
	Topic         string
	Description   string
	Style         string
	Language      string
	TargetMinutes int
}

// Metadata is the publishing copy generated for a finished video.
type Metadata struct {
	Titles      []string `json:"titles"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

const scriptSystemPrompt = `You write narration scripts for short historical mystery documentaries.
Write in the requested language. Separate scenes with a single blank line.
Each scene is one to three sentences a narrator reads over a single image.
Respond with JSON: {"script": "<scene one>\n\n<scene two>..."}`

const imagePromptSystemPrompt = `You turn a narration paragraph into one detailed prompt for an image model.
Describe subject, setting, lighting, and composition. Never include text or captions in the image.
Respond with JSON: {"prompt": "..."}`

const translateSystemPrompt = `You translate documentary narration faithfully, keeping tone and pacing.
Respond with JSON: {"text": "..."}`

const metadataSystemPrompt = `You write YouTube publishing copy for a documentary.
Titles must be under 90 characters and distinct from one another. Tags are short keywords.
Respond with JSON: {"titles": ["..."], "description": "...", "tags": ["..."]}`

// WriteScript drafts the full narration script for a brief.
func (c *Client) WriteScript(ctx context.Context, brief Brief) (string, error) {
	if strings.TrimSpace(brief.Topic) == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "write script", "topic required", nil)
	}
	user := fmt.Sprintf(
		"Topic: %s\nDetails: %s\nVisual style: %s\nLanguage: %s\nTarget length: about %d minutes of narration.",
		brief.Topic, orNone(brief.Description), brief.Style, brief.Language, brief.TargetMinutes,
	)
	var parsed struct {
		Script string `json:"script"`
	}
	if err := c.completeInto(ctx, scriptSystemPrompt, user, "write script", &parsed); err != nil {
		return "", err
	}
	script := strings.TrimSpace(parsed.Script)
	if script == "" {
		return "", services.Wrap(services.ErrTransient, "llm", "write script", "model returned an empty script", nil)
	}
	return script, nil
}

// ImagePrompt writes an image-generation prompt for one scene.
func (c *Client) ImagePrompt(ctx context.Context, sceneText, style, aspectRatio string) (string, error) {
	user := fmt.Sprintf("Style: %s\nAspect ratio: %s\nNarration:\n%s", style, aspectRatio, sceneText)
	var parsed struct {
		Prompt string `json:"prompt"`
	}
	if err := c.completeInto(ctx, imagePromptSystemPrompt, user, "image prompt", &parsed); err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(parsed.Prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrTransient, "llm", "image prompt", "model returned an empty prompt", nil)
	}
	return prompt, nil
}

// Translate renders text from the source language into the target language.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	user := fmt.Sprintf("Source language: %s\nTarget language: %s\nText:\n%s", source, target, text)
	var parsed struct {
		Text string `json:"text"`
	}
	if err := c.completeInto(ctx, translateSystemPrompt, user, "translate", &parsed); err != nil {
		return "", err
	}
	translated := strings.TrimSpace(parsed.Text)
	if translated == "" {
		return "", services.Wrap(services.ErrTransient, "llm", "translate", "model returned an empty translation", nil)
	}
	return translated, nil
}

// WriteMetadata drafts titleCount title options plus description and tags.
func (c *Client) WriteMetadata(ctx context.Context, brief Brief, script string, titleCount int) (Metadata, error) {
	user := fmt.Sprintf(
		"Topic: %s\nLanguage: %s\nWrite exactly %d title options.\nScript:\n%s",
		brief.Topic, brief.Language, titleCount, script,
	)
	var parsed Metadata
	if err := c.completeInto(ctx, metadataSystemPrompt, user, "write metadata", &parsed); err != nil {
		return Metadata{}, err
	}
	titles := make([]string, 0, len(parsed.Titles))
	for _, title := range parsed.Titles {
		if title = strings.TrimSpace(title); title != "" {
			titles = append(titles, title)
		}
	}
	if len(titles) < titleCount {
		return Metadata{}, services.Wrap(services.ErrTransient, "llm", "write metadata",
			fmt.Sprintf("model returned %d titles, want %d", len(titles), titleCount), nil)
	}
	parsed.Titles = titles[:titleCount]
	parsed.Description = strings.TrimSpace(parsed.Description)
	return parsed, nil
}

func (c *Client) completeInto(ctx context.Context, system, user, op string, target any) error {
	content, err := c.CompleteJSON(ctx, system, user)
	if err != nil {
		return err
	}
	if err := DecodeLLMJSON(content, target); err != nil {
		return services.Wrap(services.ErrTransient, "llm", op, "parse payload", err)
	}
	return nil
}

func orNone(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(none)"
	}
	return value
}
