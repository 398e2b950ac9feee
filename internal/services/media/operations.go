package media

import (
	"context"
	"fmt"

	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

// ImageRequest asks for one still image.
type ImageRequest struct {
	Prompt      string `json:"prompt"`
	Style       string `json:"style"`
	AspectRatio string `json:"aspect_ratio"`
}

// NarrationRequest asks for speech audio of one scene.
type NarrationRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Narration is the synthesized audio artifact.
type Narration struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RenderScene is one segment of the final video.
type RenderScene struct {
	Order           int     `json:"order"`
	ImageURL        string  `json:"image_url"`
	AudioURL        string  `json:"audio_url"`
	DurationSeconds float64 `json:"duration_seconds"`
	Caption         string  `json:"caption,omitempty"`
}

// RenderRequest assembles scenes into a video.
type RenderRequest struct {
	StoryID     int64         `json:"story_id"`
	AspectRatio string        `json:"aspect_ratio"`
	Scenes      []RenderScene `json:"scenes"`
}

// ThumbnailRequest asks for a set of thumbnail candidates.
type ThumbnailRequest struct {
	StoryID      int64  `json:"story_id"`
	Topic        string `json:"topic"`
	Style        string `json:"style"`
	Count        int    `json:"count"`
	Feedback     string `json:"feedback,omitempty"`
	ReferenceURL string `json:"reference_url,omitempty"`
}

// Thumbnail is one generated candidate.
type Thumbnail struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// UploadRequest publishes a rendered video.
type UploadRequest struct {
	VideoURL     string   `json:"video_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Language     string   `json:"language"`
}

// Upload identifies the published video.
type Upload struct {
	VideoID string `json:"video_id"`
	URL     string `json:"url"`
}

// GenerateImage renders one image and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "image", "/v1/images", req, &out); err != nil {
		return "", err
	}
	return requireURL("image", out.URL)
}

// Narrate synthesizes speech for one scene.
func (c *Client) Narrate(ctx context.Context, req NarrationRequest) (Narration, error) {
	var out Narration
	if err := c.post(ctx, "narration", "/v1/narrations", req, &out); err != nil {
		return Narration{}, err
	}
	if _, err := requireURL("narration", out.URL); err != nil {
		return Narration{}, err
	}
	return out, nil
}

// Render assembles the final video and returns its URL.
func (c *Client) Render(ctx context.Context, req RenderRequest) (string, error) {
	if len(req.Scenes) == 0 {
		return "", services.Wrap(services.ErrValidation, "media", "render", "no scenes to render", nil)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "render", "/v1/renders", req, &out); err != nil {
		return "", err
	}
	return requireURL("render", out.URL)
}

// Thumbnails generates req.Count candidates.
func (c *Client) Thumbnails(ctx context.Context, req ThumbnailRequest) ([]Thumbnail, error) {
	var out struct {
		Thumbnails []Thumbnail `json:"thumbnails"`
	}
	if err := c.post(ctx, "thumbnails", "/v1/thumbnails", req, &out); err != nil {
		return nil, err
	}
	results := make([]Thumbnail, 0, len(out.Thumbnails))
	for _, thumb := range out.Thumbnails {
		if thumb.URL != "" {
			results = append(results, thumb)
		}
	}
	if len(results) < req.Count {
		return nil, services.Wrap(services.ErrTransient, "media", "thumbnails",
			fmt.Sprintf("service returned %d thumbnails, want %d", len(results), req.Count), nil)
	}
	return results[:req.Count], nil
}

// Upload publishes the video and returns its public identity.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (Upload, error) {
	var out Upload
	if err := c.post(ctx, "upload", "/v1/uploads", req, &out); err != nil {
		return Upload{}, err
	}
	if out.VideoID == "" {
		return Upload{}, services.Wrap(services.ErrTransient, "media", "upload", "service returned no video id", nil)
	}
	if out.URL == "" {
		out.URL = "https://www.youtube.com/watch?v=" + out.VideoID
	}
	return out, nil
}
