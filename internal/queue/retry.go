package queue

import (
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

// RetryAction is the outcome of a failed attempt.
type RetryAction string

const (
	ActionRequeue   RetryAction = "requeue"
	ActionTerminate RetryAction = "terminate"
)

// RetryDecision tells the worker how to resolve a failed job.
type RetryDecision struct {
	Action RetryAction
	Delay  time.Duration
}

// RetryPolicy decides between requeue with backoff and terminal failure.
type RetryPolicy struct {
	BaseDelay                time.Duration
	FailPermanentImmediately bool
}

// maxBackoffShift caps the exponent so huge retry budgets cannot overflow.
const maxBackoffShift = 30

// Delay returns BaseDelay * 2^retryCount.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxBackoffShift {
		retryCount = maxBackoffShift
	}
	return p.BaseDelay * time.Duration(int64(1)<<retryCount)
}

// Decide resolves a failed attempt of job. retry_count counts failed attempts
// so far, excluding the one being resolved; a job with max_retries N is
// executed at most N+1 times.
func (p RetryPolicy) Decide(job *Job, kind services.FailureKind) RetryDecision {
	if job == nil {
		return RetryDecision{Action: ActionTerminate}
	}
	if p.FailPermanentImmediately && kind == services.FailurePermanent {
		return RetryDecision{Action: ActionTerminate}
	}
	if job.RetryCount < job.MaxRetries {
		return RetryDecision{Action: ActionRequeue, Delay: p.Delay(job.RetryCount)}
	}
	return RetryDecision{Action: ActionTerminate}
}
