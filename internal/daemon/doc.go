// Package daemon coordinates the long-running lostarchivesd process.
//
// It wires configuration, the job store, the workflow manager and the story
// coordinator into a single lifecycle with flock-based locking so that only
// one daemon per worker instance runs on a host. On start it logs preflight
// results, launches the worker lanes, schedules the lease sweep with cron and
// serves the HTTP API (liveness, status and operator actions).
//
// Keep orchestration logic here: job semantics live in production, stage
// transitions in pipeline, and claim/resolve mechanics in workflow.
package daemon
