package logging

import (
	"context"
	"log/slog"

	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStoryID is the standardized key for story (workflow entity) identifiers.
	FieldStoryID = "story_id"
	// FieldSceneID is the standardized key for scene (unit) identifiers.
	FieldSceneID = "scene_id"
	// FieldJobID is the standardized key for job identifiers.
	FieldJobID = "job_id"
	// FieldJobType is the standardized key for job types and worker lanes.
	FieldJobType = "job_type"
	// FieldWorkerID is the standardized key for claiming worker identities.
	FieldWorkerID = "worker_id"
	// FieldStatus is the standardized key for story or job status values.
	FieldStatus = "status"
	// FieldEventType classifies a log line for filtering (job_claimed, story_advanced, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the failure classification (transient, permanent).
	FieldErrorKind = "error_kind"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.StoryIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldStoryID, id))
	}
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldJobID, id))
	}
	if jobType, ok := services.JobTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobType, jobType))
	}
	if worker, ok := services.WorkerIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorkerID, worker))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		args = append(args, field)
	}
	return logger.With(args...)
}
