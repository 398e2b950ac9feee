package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CreateStory inserts a draft story.
func (s *Store) CreateStory(ctx context.Context, brief NewStory) (*Story, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(brief.Topic) == "" {
		return nil, errors.New("create story: topic is required")
	}
	if len(brief.Languages) == 0 {
		return nil, errors.New("create story: at least one language is required")
	}
	if brief.TargetDurationMinutes <= 0 {
		return nil, errors.New("create story: target duration must be positive")
	}
	languages, err := json.Marshal(brief.Languages)
	if err != nil {
		return nil, fmt.Errorf("encode languages: %w", err)
	}
	now := formatTime(s.Now())

	var story *Story
	err = retryOnBusy(ctx, func() error {
		created, err := scanStory(s.queryRow(ctx, s.db,
			`INSERT INTO stories (topic, description, target_duration_minutes, languages, style, aspect_ratio, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 'draft', ?, ?)
			 RETURNING `+storyColumns,
			strings.TrimSpace(brief.Topic),
			strings.TrimSpace(brief.Description),
			brief.TargetDurationMinutes,
			string(languages),
			brief.Style,
			brief.AspectRatio,
			now,
			now,
		))
		story = created
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return story, nil
}

func (s *Store) getStory(ctx context.Context, q querier, id int64) (*Story, error) {
	story, err := scanStory(s.queryRow(ctx, q, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return story, nil
}

// GetStory fetches a story by id. It returns nil, nil when the story does not exist.
func (s *Store) GetStory(ctx context.Context, id int64) (*Story, error) {
	return s.getStory(ensureContext(ctx), s.db, id)
}

// ListStories returns stories ordered by id, optionally filtered by status.
func (s *Store) ListStories(ctx context.Context, statuses ...StoryStatus) ([]*Story, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + storyColumns + ` FROM stories`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY id"

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()
	var stories []*Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, story)
	}
	return stories, rows.Err()
}

// StoryCounts returns the number of stories per status.
func (s *Store) StoryCounts(ctx context.Context) (map[StoryStatus]int, error) {
	rows, err := s.query(ensureContext(ctx), s.db, `SELECT status, COUNT(1) FROM stories GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("story counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[StoryStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[StoryStatus(status)] = count
	}
	return counts, rows.Err()
}

// SaveScript stores the script and replaces the story's scenes with one scene
// per entry of texts, ordered from 1. Re-running it yields the same scenes.
func (s *Store) SaveScript(ctx context.Context, storyID int64, script string, texts []string) ([]*Scene, error) {
	if len(texts) == 0 {
		return nil, errors.New("save script: at least one scene is required")
	}
	var scenes []*Scene
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		scenes = scenes[:0]
		now := formatTime(s.Now())
		if _, err := s.exec(ctx, tx, `DELETE FROM scenes WHERE story_id = ?`, storyID); err != nil {
			return err
		}
		for idx, text := range texts {
			scene, err := scanScene(s.queryRow(ctx, tx,
				`INSERT INTO scenes (story_id, scene_order, text_content, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?) RETURNING `+sceneColumns,
				storyID, idx+1, text, now, now,
			))
			if err != nil {
				return fmt.Errorf("insert scene %d: %w", idx+1, err)
			}
			scenes = append(scenes, scene)
		}
		return s.updateStory(ctx, tx, storyID, "script_text = ?", script)
	})
	if err != nil {
		return nil, fmt.Errorf("save script: %w", err)
	}
	return scenes, nil
}

// SetVideoURL records the rendered output of a story.
func (s *Store) SetVideoURL(ctx context.Context, storyID int64, url string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateStory(ctx, tx, storyID, "video_url = ?", url)
	})
}

// SaveMetadata replaces the title options and stores the publish metadata.
func (s *Store) SaveMetadata(ctx context.Context, storyID int64, titles []string, meta StoryMetadata) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.Now())
		if _, err := s.exec(ctx, tx, `DELETE FROM title_options WHERE story_id = ?`, storyID); err != nil {
			return err
		}
		for _, title := range titles {
			if _, err := s.exec(ctx, tx,
				`INSERT INTO title_options (story_id, title_text, created_at) VALUES (?, ?, ?)`,
				storyID, title, now,
			); err != nil {
				return err
			}
		}
		return s.updateStory(ctx, tx, storyID, "metadata = ?", string(encoded))
	})
	if err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// SetUpload records the published video identity.
func (s *Store) SetUpload(ctx context.Context, storyID int64, videoID, url string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateStory(ctx, tx, storyID, "youtube_video_id = ?, youtube_url = ?", videoID, url)
	})
}

// SelectForReview stores the operator's title and thumbnail choice. The
// story must be ready for review and both options must belong to it.
func (s *Store) SelectForReview(ctx context.Context, storyID, titleID, thumbnailID int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		story, err := s.getStory(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if story == nil {
			return fmt.Errorf("story %d: %w", storyID, ErrNotFound)
		}
		if story.Status != StoryReadyForReview {
			return fmt.Errorf("story %d is %s, not ready for review: %w", storyID, story.Status, ErrInvalidState)
		}
		var title string
		err = s.queryRow(ctx, tx, `SELECT title_text FROM title_options WHERE id = ? AND story_id = ?`, titleID, storyID).Scan(&title)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("title option %d for story %d: %w", titleID, storyID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		var thumbnailURL string
		err = s.queryRow(ctx, tx, `SELECT image_url FROM thumbnail_options WHERE id = ? AND story_id = ?`, thumbnailID, storyID).Scan(&thumbnailURL)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("thumbnail option %d for story %d: %w", thumbnailID, storyID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return s.updateStory(ctx, tx, storyID, "selected_title = ?, selected_thumbnail_url = ?", title, thumbnailURL)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("select for review: %w", err)
	}
	return nil
}

// updateStory applies a SET fragment and bumps updated_at.
func (s *Store) updateStory(ctx context.Context, q querier, storyID int64, set string, args ...any) error {
	args = append(args, formatTime(s.Now()), storyID)
	res, err := s.exec(ctx, q, `UPDATE stories SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("story %d: %w", storyID, ErrNotFound)
	}
	return nil
}

// transitionStory moves a story from one status to another. It reports false
// when the story was not in from, which means another caller won the race.
func (s *Store) transitionStory(ctx context.Context, q querier, storyID int64, from, to StoryStatus) (bool, error) {
	res, err := s.exec(ctx, q,
		`UPDATE stories SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(s.Now()), storyID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition story %d %s->%s: %w", storyID, from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
