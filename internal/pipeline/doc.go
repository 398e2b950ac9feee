// Package pipeline moves stories through their stages.
//
// The Coordinator owns every story status change. After a worker completes a
// job it calls Advance, which checks whether the story's current stage is
// finished and, if so, moves the story forward and enqueues the next wave of
// jobs. Each step is one transaction: the completion predicate is evaluated,
// the status is changed with a compare-and-swap UPDATE, and the next jobs are
// inserted only when that UPDATE changed exactly one row. Any number of
// workers may call Advance for the same story at the same time; exactly one
// of them performs each transition and the next wave is inserted once.
//
// Operator actions (start, review selection, publish, thumbnail regeneration,
// retry) use the same transactional pattern.
package pipeline
