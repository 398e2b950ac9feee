package api

import (
	"context"
	"fmt"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

// StoryReader abstracts the store reads needed for API queries.
type StoryReader interface {
	GetStory(ctx context.Context, id int64) (*queue.Story, error)
	ListStories(ctx context.Context, statuses ...queue.StoryStatus) ([]*queue.Story, error)
	ListScenes(ctx context.Context, storyID int64) ([]*queue.Scene, error)
	ListTitleOptions(ctx context.Context, storyID int64) ([]*queue.TitleOption, error)
	ListThumbnailOptions(ctx context.Context, storyID int64) ([]*queue.ThumbnailOption, error)
	ListJobs(ctx context.Context, filter queue.JobFilter) ([]*queue.Job, error)
}

// StoryService exposes read-only story operations returning API DTOs.
type StoryService struct {
	store StoryReader
}

// NewStoryService constructs a StoryService around the provided reader.
func NewStoryService(store StoryReader) *StoryService {
	if store == nil {
		return nil
	}
	return &StoryService{store: store}
}

// List returns stories filtered by status.
func (s *StoryService) List(ctx context.Context, statuses ...queue.StoryStatus) ([]Story, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stories, err := s.store.ListStories(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromStories(stories), nil
}

// Describe assembles a story with its scenes, options and jobs. It returns
// queue.ErrNotFound when the story does not exist.
func (s *StoryService) Describe(ctx context.Context, id int64) (*StoryDetail, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("story %d: %w", id, queue.ErrNotFound)
	}
	story, err := s.store.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, fmt.Errorf("story %d: %w", id, queue.ErrNotFound)
	}
	detail := &StoryDetail{Story: FromStory(story)}

	scenes, err := s.store.ListScenes(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Scenes = make([]Scene, 0, len(scenes))
	for _, scene := range scenes {
		detail.Scenes = append(detail.Scenes, FromScene(scene))
	}

	titles, err := s.store.ListTitleOptions(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Titles = make([]TitleOption, 0, len(titles))
	for _, title := range titles {
		detail.Titles = append(detail.Titles, TitleOption{ID: title.ID, Title: title.Title})
	}

	thumbnails, err := s.store.ListThumbnailOptions(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Thumbnails = make([]ThumbnailOption, 0, len(thumbnails))
	for _, thumb := range thumbnails {
		detail.Thumbnails = append(detail.Thumbnails, ThumbnailOption{
			ID:       thumb.ID,
			ImageURL: thumb.ImageURL,
			Prompt:   thumb.Prompt,
			Feedback: thumb.Feedback,
			Version:  thumb.Version,
		})
	}

	jobs, err := s.store.ListJobs(ctx, queue.JobFilter{StoryID: id})
	if err != nil {
		return nil, err
	}
	detail.Jobs = FromJobs(jobs)
	return detail, nil
}

// Jobs lists jobs matching filter.
func (s *StoryService) Jobs(ctx context.Context, filter queue.JobFilter) ([]Job, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}
