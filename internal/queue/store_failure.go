package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FailResult describes the effect of a terminal job failure.
type FailResult struct {
	StoryID  int64
	Attempts int
	// StoryFailed is true when this failure moved the story to failed. It is
	// false when the story was already failed or published.
	StoryFailed bool
	Message     string
}

// RetryResult describes an operator retry of a failed story.
type RetryResult struct {
	StoryID int64
	Status  StoryStatus
	JobIDs  []int64
}

// RequeueJob returns a job the caller holds to queued with retry_count+1 and
// next_retry_at = now + delay.
func (s *Store) RequeueJob(ctx context.Context, jobID int64, workerID string, delay time.Duration, cause string) (time.Time, error) {
	next := s.Now().Add(delay)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
		 SET status = 'queued', retry_count = retry_count + 1, next_retry_at = ?, error_message = ?,
		     worker_id = NULL, started_at = NULL, heartbeat_at = NULL
		 WHERE id = ? AND status = 'processing' AND worker_id = ?`,
		formatTime(next), nullableString(truncateMessage(cause, errorMessageLimit)), jobID, workerID,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("requeue job: %w", err)
	}
	if err := requireOwned(res, jobID); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// FailJob marks a job the caller holds as failed and moves its story to
// failed in the same transaction. Stories that are already failed or
// published are left alone.
func (s *Store) FailJob(ctx context.Context, jobID int64, workerID, cause string) (FailResult, error) {
	var result FailResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			jobType    string
			retryCount int
		)
		err := s.queryRow(ctx, tx,
			`SELECT parent_id, job_type, retry_count FROM jobs WHERE id = ? AND status = 'processing' AND worker_id = ?`,
			jobID, workerID,
		).Scan(&result.StoryID, &jobType, &retryCount)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %d: %w", jobID, ErrLeaseLost)
		}
		if err != nil {
			return err
		}

		now := formatTime(s.Now())
		result.Attempts = retryCount + 1
		jobMessage := truncateMessage(fmt.Sprintf("failed after %d attempts: %s", result.Attempts, cause), errorMessageLimit)
		res, err := s.exec(ctx, tx,
			`UPDATE jobs
			 SET status = 'failed', completed_at = ?, error_message = ?, worker_id = NULL, heartbeat_at = NULL, next_retry_at = NULL
			 WHERE id = ? AND status = 'processing' AND worker_id = ?`,
			now, jobMessage, jobID, workerID,
		)
		if err != nil {
			return err
		}
		if err := requireOwned(res, jobID); err != nil {
			return err
		}

		result.Message = truncateMessage(fmt.Sprintf("%s job %d failed after %d attempts: %s", jobType, jobID, result.Attempts, cause), errorMessageLimit)
		res, err = s.exec(ctx, tx,
			`UPDATE stories
			 SET failed_stage = status, status = 'failed', error_message = ?, updated_at = ?
			 WHERE id = ? AND status NOT IN ('failed', 'published')`,
			result.Message, now, result.StoryID,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		result.StoryFailed = affected == 1
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLeaseLost) {
			return FailResult{}, err
		}
		return FailResult{}, fmt.Errorf("fail job: %w", err)
	}
	return result, nil
}

// RetryStory re-queues the latest failed job of a failed story, together with
// the other failed jobs of the same stage, with a fresh retry budget and moves
// the story back to the stage it failed in.
func (s *Store) RetryStory(ctx context.Context, storyID int64) (RetryResult, error) {
	result := RetryResult{StoryID: storyID}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		story, err := s.getStory(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if story == nil {
			return fmt.Errorf("story %d: %w", storyID, ErrNotFound)
		}
		if story.Status != StoryFailed {
			return fmt.Errorf("story %d is %s, not failed: %w", storyID, story.Status, ErrInvalidState)
		}

		latest, err := scanJob(s.queryRow(ctx, tx,
			`SELECT `+jobColumns+` FROM jobs WHERE parent_id = ? AND status = 'failed'
			 ORDER BY completed_at DESC, id DESC LIMIT 1`, storyID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("story %d has no failed job: %w", storyID, ErrInvalidState)
		}
		if err != nil {
			return err
		}
		result.Status = resumeTarget(story.FailedStage, latest.JobType)

		stageTypes := sameStageJobTypes(latest.JobType)
		args := append([]any{storyID}, jobTypeArgs(stageTypes)...)
		rows, err := s.query(ctx, tx,
			`UPDATE jobs
			 SET status = 'queued', retry_count = 0, next_retry_at = NULL, worker_id = NULL,
			     started_at = NULL, heartbeat_at = NULL, completed_at = NULL
			 WHERE parent_id = ? AND status = 'failed' AND job_type IN (`+makePlaceholders(len(stageTypes))+`)
			 RETURNING id`, args...)
		if err != nil {
			return err
		}
		result.JobIDs = result.JobIDs[:0]
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			result.JobIDs = append(result.JobIDs, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = s.exec(ctx, tx,
			`UPDATE stories SET status = ?, failed_stage = NULL, error_message = NULL, updated_at = ?
			 WHERE id = ? AND status = 'failed'`,
			string(result.Status), formatTime(s.Now()), storyID,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
			return RetryResult{}, err
		}
		return RetryResult{}, fmt.Errorf("retry story: %w", err)
	}
	return result, nil
}

// resumeTarget picks the later of the recorded failure stage and the stage
// implied by the failed job type, so a retry never rewinds the story into a
// stage whose jobs already completed.
func resumeTarget(failedStage StoryStatus, jobType JobType) StoryStatus {
	byType, ok := ResumeStatusFor(jobType)
	if !ok {
		byType = StoryScripting
	}
	if failedStage == "" || failedStage.IsTerminal() {
		return byType
	}
	if failedStage.stageOrder() > byType.stageOrder() {
		return failedStage
	}
	return byType
}
