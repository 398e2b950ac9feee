// Package logging assembles structured slog loggers and formatting helpers used
// across Lost Archives services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker and coordinator code
// automatically tags log lines with story IDs, job IDs, job types, and
// correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
