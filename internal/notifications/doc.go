// Package notifications pushes pipeline milestones to the operator via ntfy.
//
// Three events matter to an operator running the archive: a story is ready
// for review, a story was published, and a story failed terminally. Each can
// be toggled in the [notifications] config section. Without a topic the
// service degrades to a no-op so callers never branch on configuration.
package notifications
