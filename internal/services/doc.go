// Package services defines shared utilities consumed by the job handlers and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp story IDs, job IDs, job types, worker
//     identities, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which
//     turns any handler failure into a transient or permanent verdict for
//     the retry policy.
//
// Use these helpers when wiring new handler logic so failure handling and
// observability stay uniform across the pipeline.
package services
