package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetScene fetches a scene by id. It returns nil, nil when the scene does not exist.
func (s *Store) GetScene(ctx context.Context, id int64) (*Scene, error) {
	scene, err := scanScene(s.queryRow(ensureContext(ctx), s.db, `SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return scene, nil
}

// ListScenes returns a story's scenes in order.
func (s *Store) ListScenes(ctx context.Context, storyID int64) ([]*Scene, error) {
	return s.listScenes(ensureContext(ctx), s.db, storyID)
}

func (s *Store) listScenes(ctx context.Context, q querier, storyID int64) ([]*Scene, error) {
	rows, err := s.query(ctx, q, `SELECT `+sceneColumns+` FROM scenes WHERE story_id = ? ORDER BY scene_order`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()
	var scenes []*Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

// SetSceneImage stores the generated image and the prompt that produced it.
func (s *Store) SetSceneImage(ctx context.Context, sceneID int64, prompt, url string) error {
	return s.updateScene(ctx, sceneID, "image_prompt = ?, image_url = ?", prompt, url)
}

// SetSceneAudio stores the narration and its duration.
func (s *Store) SetSceneAudio(ctx context.Context, sceneID int64, url string, durationSeconds float64) error {
	return s.updateScene(ctx, sceneID, "audio_url = ?, duration_seconds = ?", url, durationSeconds)
}

func (s *Store) updateScene(ctx context.Context, sceneID int64, set string, args ...any) error {
	args = append(args, formatTime(s.Now()), sceneID)
	res, err := s.execWithRetry(ctx, `UPDATE scenes SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("scene %d: %w", sceneID, ErrNotFound)
	}
	return nil
}

// MergeTranslation adds one language to a scene's translations. Concurrent
// translations of the same scene are serialized by the transaction, so none
// overwrites another.
func (s *Store) MergeTranslation(ctx context.Context, sceneID int64, language, text string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var raw sql.NullString
		err := s.queryRow(ctx, tx, `SELECT translated_text FROM scenes WHERE id = ?`+s.dialect.forUpdate, sceneID).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("scene %d: %w", sceneID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		translations := map[string]string{}
		if raw.Valid && raw.String != "" {
			if err := json.Unmarshal([]byte(raw.String), &translations); err != nil {
				return fmt.Errorf("decode translations: %w", err)
			}
		}
		translations[language] = text
		encoded, err := json.Marshal(translations)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `UPDATE scenes SET translated_text = ?, updated_at = ? WHERE id = ?`,
			string(encoded), formatTime(s.Now()), sceneID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("merge translation: %w", err)
	}
	return nil
}
