package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AddThumbnails stores a new version of thumbnail options and returns the
// version number. Earlier versions are kept for comparison during review.
func (s *Store) AddThumbnails(ctx context.Context, storyID int64, thumbnails []NewThumbnail, feedback string) (int, error) {
	if len(thumbnails) == 0 {
		return 0, errors.New("add thumbnails: no thumbnails")
	}
	var version int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.queryRow(ctx, tx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM thumbnail_options WHERE story_id = ?`, storyID,
		).Scan(&version); err != nil {
			return err
		}
		now := formatTime(s.Now())
		for _, thumb := range thumbnails {
			if strings.TrimSpace(thumb.ImageURL) == "" {
				return errors.New("thumbnail image url is empty")
			}
			if _, err := s.exec(ctx, tx,
				`INSERT INTO thumbnail_options (story_id, image_url, prompt, feedback, version, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				storyID, thumb.ImageURL, nullableString(thumb.Prompt), nullableString(feedback), version, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add thumbnails: %w", err)
	}
	return version, nil
}

// ListTitleOptions returns a story's title options in insertion order.
func (s *Store) ListTitleOptions(ctx context.Context, storyID int64) ([]*TitleOption, error) {
	rows, err := s.query(ensureContext(ctx), s.db,
		`SELECT id, story_id, title_text, created_at FROM title_options WHERE story_id = ? ORDER BY id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list title options: %w", err)
	}
	defer rows.Close()
	var options []*TitleOption
	for rows.Next() {
		var (
			option     TitleOption
			createdRaw string
		)
		if err := rows.Scan(&option.ID, &option.StoryID, &option.Title, &createdRaw); err != nil {
			return nil, err
		}
		option.CreatedAt, _ = parseTimeString(createdRaw)
		options = append(options, &option)
	}
	return options, rows.Err()
}

// ListThumbnailOptions returns a story's thumbnail options, newest version first.
func (s *Store) ListThumbnailOptions(ctx context.Context, storyID int64) ([]*ThumbnailOption, error) {
	rows, err := s.query(ensureContext(ctx), s.db,
		`SELECT id, story_id, image_url, prompt, feedback, version, created_at
		 FROM thumbnail_options WHERE story_id = ? ORDER BY version DESC, id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list thumbnail options: %w", err)
	}
	defer rows.Close()
	var options []*ThumbnailOption
	for rows.Next() {
		var (
			option     ThumbnailOption
			prompt     sql.NullString
			feedback   sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&option.ID, &option.StoryID, &option.ImageURL, &prompt, &feedback, &option.Version, &createdRaw); err != nil {
			return nil, err
		}
		option.Prompt = prompt.String
		option.Feedback = feedback.String
		option.CreatedAt, _ = parseTimeString(createdRaw)
		options = append(options, &option)
	}
	return options, rows.Err()
}

func (s *Store) countOptions(ctx context.Context, q querier, storyID int64) (titles, thumbnails int, err error) {
	if err = s.queryRow(ctx, q, `SELECT COUNT(1) FROM title_options WHERE story_id = ?`, storyID).Scan(&titles); err != nil {
		return 0, 0, fmt.Errorf("count title options: %w", err)
	}
	if err = s.queryRow(ctx, q, `SELECT COUNT(1) FROM thumbnail_options WHERE story_id = ?`, storyID).Scan(&thumbnails); err != nil {
		return 0, 0, fmt.Errorf("count thumbnail options: %w", err)
	}
	return titles, thumbnails, nil
}
