package stage

import (
	"context"

	"github.com/tiagogladstone/the-lost-archives/internal/queue"
)

// Handler describes the contract the workflow manager needs from each job type.
// Execute must be safe to re-run: a job may be executed again after a retry or
// a reclaimed lease.
type Handler interface {
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// Registry maps job types to the handler that serves them.
type Registry map[queue.JobType]Handler

// JobTypes returns the registered job types in pipeline order.
func (r Registry) JobTypes() []queue.JobType {
	var types []queue.JobType
	for _, jobType := range queue.AllJobTypes() {
		if _, ok := r[jobType]; ok {
			types = append(types, jobType)
		}
	}
	return types
}
