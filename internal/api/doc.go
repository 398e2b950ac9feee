// Package api defines the wire-format types shared by the daemon HTTP surface
// and the operator CLI. It translates queue models into transport-friendly
// DTOs so consumers never depend on internal types.
//
// # Key Types
//
// Story / StoryDetail: a story row, optionally with its scenes, review options
// and jobs.
//
// Job: one claimable work unit with its retry bookkeeping.
//
// DaemonStatus: lane snapshots, job stats and story counts.
//
// # Converters
//
// FromStory, FromScene, FromJob and FromStatusSummary map queue and workflow
// values onto DTOs. StoryService assembles a StoryDetail from a StoryReader.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (story status, job type and status) are
// exposed as their lowercase string values. Timestamps use RFC3339 with
// milliseconds and are omitted when unset.
package api
