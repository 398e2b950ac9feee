// Package workflow runs the worker lanes that drain the job table.
//
// The Manager starts one lane per job type served by this process. A lane
// claims the oldest eligible job of its type, runs the registered handler
// while a heartbeat keeps the lease fresh, and resolves the job: completed
// jobs are handed to the coordinator so the story can advance, failed jobs go
// through the retry policy and are either requeued with backoff or failed
// together with their story.
//
// Lanes share nothing in memory; every decision is made against the store, so
// any number of processes may run lanes for the same job type. The clock and
// the idle sleeper are injectable so tests can drive lanes deterministically.
package workflow
