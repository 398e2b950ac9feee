package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const errorMessageLimit = 2000

// EnqueueJobs inserts jobs in one transaction and returns their ids.
func (s *Store) EnqueueJobs(ctx context.Context, jobs ...NewJob) ([]int64, error) {
	var ids []int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ids, err = s.insertJobs(ctx, tx, jobs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) insertJobs(ctx context.Context, q querier, jobs []NewJob) ([]int64, error) {
	now := formatTime(s.Now())
	ids := make([]int64, 0, len(jobs))
	for _, job := range jobs {
		if job.ParentID <= 0 {
			return nil, errors.New("insert job: parent id is required")
		}
		if _, ok := ParseJobType(string(job.JobType)); !ok {
			return nil, fmt.Errorf("insert job: unknown job type %q", job.JobType)
		}
		payload, err := encodePayload(job.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		var id int64
		err = s.queryRow(ctx, q,
			`INSERT INTO jobs (parent_id, unit_id, job_type, status, payload, retry_count, max_retries, created_at)
			 VALUES (?, ?, ?, 'queued', ?, 0, ?, ?) RETURNING id`,
			job.ParentID,
			nullableInt64(job.UnitID),
			string(job.JobType),
			payload,
			s.maxRetries,
			now,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert %s job: %w", job.JobType, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClaimNext atomically moves the oldest eligible queued job of jobType to
// processing under workerID. It returns nil, nil when nothing is eligible.
// Jobs of a failed story stay queued and are skipped until RetryStory.
// Two concurrent callers can never both receive the same job: the UPDATE is
// conditioned on status still being 'queued'.
func (s *Store) ClaimNext(ctx context.Context, jobType JobType, workerID string) (*Job, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(workerID) == "" {
		return nil, errors.New("claim: worker id is required")
	}
	now := formatTime(s.Now())
	query := fmt.Sprintf(`UPDATE jobs
		SET status = 'processing', worker_id = ?, started_at = ?, heartbeat_at = ?, completed_at = NULL
		WHERE id = (
			SELECT id FROM jobs
			WHERE job_type = ? AND status = 'queued' AND (next_retry_at IS NULL OR next_retry_at <= ?)
			  AND NOT EXISTS (SELECT 1 FROM stories WHERE stories.id = jobs.parent_id AND stories.status = 'failed')
			ORDER BY created_at, id
			LIMIT 1%s
		) AND status = 'queued'
		RETURNING %s`, s.dialect.claimLock, jobColumns)

	var job *Job
	err := retryOnBusy(ctx, func() error {
		claimed, err := scanJob(s.queryRow(ctx, s.db, query, workerID, now, now, string(jobType), now))
		if err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim %s job: %w", jobType, err)
	}
	return job, nil
}

// UpdateHeartbeat refreshes the lease on a processing job.
func (s *Store) UpdateHeartbeat(ctx context.Context, jobID int64, workerID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET heartbeat_at = ? WHERE id = ? AND status = 'processing' AND worker_id = ?`,
		formatTime(s.Now()), jobID, workerID,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return requireOwned(res, jobID)
}

// CompleteJob marks a job the caller still holds as completed.
func (s *Store) CompleteJob(ctx context.Context, jobID int64, workerID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
		 SET status = 'completed', completed_at = ?, worker_id = NULL, heartbeat_at = NULL, next_retry_at = NULL, error_message = NULL
		 WHERE id = ? AND status = 'processing' AND worker_id = ?`,
		formatTime(s.Now()), jobID, workerID,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireOwned(res, jobID)
}

func requireOwned(res sql.Result, jobID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", jobID, ErrLeaseLost)
	}
	return nil
}

// ReclaimStale returns processing jobs whose lease is older than cutoff to
// queued. The retry count is left untouched: a lost lease is not a failure
// of the work itself.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) ([]int64, error) {
	ctx = ensureContext(ctx)
	var ids []int64
	err := retryOnBusy(ctx, func() error {
		ids = ids[:0]
		rows, err := s.query(ctx, s.db,
			`UPDATE jobs
			 SET status = 'queued',
			     error_message = 'lease expired on ' || COALESCE(worker_id, 'unknown worker'),
			     worker_id = NULL, started_at = NULL, heartbeat_at = NULL
			 WHERE status = 'processing' AND COALESCE(heartbeat_at, started_at) < ?
			 RETURNING id`,
			formatTime(cutoff),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return ids, nil
}

// GetJob fetches a job by id. It returns nil, nil when the job does not exist.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(s.queryRow(ensureContext(ctx), s.db, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs matching filter ordered by id.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.StoryID > 0 {
		clauses = append(clauses, "parent_id = ?")
		args = append(args, filter.StoryID)
	}
	if len(filter.Types) > 0 {
		clauses = append(clauses, "job_type IN ("+makePlaceholders(len(filter.Types))+")")
		args = append(args, jobTypeArgs(filter.Types)...)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return s.collectJobs(ctx, s.db, query, args...)
}

func (s *Store) collectJobs(ctx context.Context, q querier, query string, args ...any) ([]*Job, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// countActiveJobs counts queued or processing jobs of the given types for a story.
func (s *Store) countActiveJobs(ctx context.Context, q querier, storyID int64, types []JobType) (int, error) {
	if len(types) == 0 {
		return 0, nil
	}
	args := append([]any{storyID}, jobTypeArgs(types)...)
	var count int
	err := s.queryRow(ctx, q,
		`SELECT COUNT(1) FROM jobs
		 WHERE parent_id = ? AND status IN ('queued', 'processing') AND job_type IN (`+makePlaceholders(len(types))+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// CountActiveJobs counts queued or processing jobs of the given types for a story.
func (s *Store) CountActiveJobs(ctx context.Context, storyID int64, types ...JobType) (int, error) {
	return s.countActiveJobs(ensureContext(ctx), s.db, storyID, types)
}

// JobStats returns job counts grouped by type and status.
func (s *Store) JobStats(ctx context.Context) (map[JobType]map[JobStatus]int, error) {
	rows, err := s.query(ensureContext(ctx), s.db, `SELECT job_type, status, COUNT(1) FROM jobs GROUP BY job_type, status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobType]map[JobStatus]int)
	for rows.Next() {
		var (
			jobType string
			status  string
			count   int
		)
		if err := rows.Scan(&jobType, &status, &count); err != nil {
			return nil, err
		}
		byStatus, ok := stats[JobType(jobType)]
		if !ok {
			byStatus = make(map[JobStatus]int)
			stats[JobType(jobType)] = byStatus
		}
		byStatus[JobStatus(status)] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.JobStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for _, byStatus := range stats {
		for status, count := range byStatus {
			health.Total += count
			switch status {
			case JobQueued:
				health.Queued += count
			case JobProcessing:
				health.Processing += count
			case JobCompleted:
				health.Completed += count
			case JobFailed:
				health.Failed += count
			}
		}
	}
	return health, nil
}
