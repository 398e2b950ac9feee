package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx exposes the reads and writes a state transition needs inside one
// transaction. It is only valid inside the WithTx callback.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

// WithTx runs fn in a transaction. A non-nil error from fn rolls it back.
// On SQLite the whole callback may run more than once when the database is
// busy, so fn must not have side effects outside the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&Tx{tx: tx, s: s})
	})
}

// Story reads a story and, on Postgres, locks its row until commit. It
// returns nil, nil when the story does not exist.
func (t *Tx) Story(ctx context.Context, id int64) (*Story, error) {
	story, err := scanStory(t.s.queryRow(ctx, t.tx,
		`SELECT `+storyColumns+` FROM stories WHERE id = ?`+t.s.dialect.forUpdate, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return story, nil
}

// Scenes returns the story's scenes in order.
func (t *Tx) Scenes(ctx context.Context, storyID int64) ([]*Scene, error) {
	return t.s.listScenes(ctx, t.tx, storyID)
}

// CountActiveJobs counts queued or processing jobs of the given types.
func (t *Tx) CountActiveJobs(ctx context.Context, storyID int64, types ...JobType) (int, error) {
	return t.s.countActiveJobs(ctx, t.tx, storyID, types)
}

// CountOptions returns the number of title and thumbnail options.
func (t *Tx) CountOptions(ctx context.Context, storyID int64) (titles, thumbnails int, err error) {
	return t.s.countOptions(ctx, t.tx, storyID)
}

// TransitionStory performs the status compare-and-swap. It reports whether
// this caller moved the story; false means the story was not in from.
func (t *Tx) TransitionStory(ctx context.Context, storyID int64, from, to StoryStatus) (bool, error) {
	return t.s.transitionStory(ctx, t.tx, storyID, from, to)
}

// InsertJobs inserts jobs as queued with the store's retry budget.
func (t *Tx) InsertJobs(ctx context.Context, jobs ...NewJob) ([]int64, error) {
	return t.s.insertJobs(ctx, t.tx, jobs)
}
