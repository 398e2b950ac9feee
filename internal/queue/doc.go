// Package queue persists stories, their scenes, and the job table that
// coordinates every worker process.
//
// The jobs table is the single source of truth for work state. Workers never
// share memory: they claim a job with one conditional UPDATE (compare-and-swap
// on status='queued'), keep its lease alive with heartbeats, and resolve it by
// completing, requeueing with backoff, or failing it. Terminal failure cascades
// to the owning story in the same transaction. Every resolution is gated on the
// caller still holding the lease, so a worker whose job was reclaimed after a
// stall cannot overwrite the new holder's outcome.
//
// Two backends share one code path: SQLite (modernc.org/sqlite, single
// connection, WAL) for single-host deployments and Postgres (lib/pq, FOR UPDATE
// SKIP LOCKED) when workers run on several hosts. Queries are written with '?'
// placeholders and rebound per dialect. Schema changes ship as goose
// migrations under migrations/<dialect>.
//
// Timestamps are stored as fixed-width UTC text so lexical order equals time
// order in both backends.
package queue
