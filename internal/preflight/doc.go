// Package preflight provides readiness checks for the directories, database
// and external services the workers depend on.
//
// The daemon runs RunAll at startup and logs every failing check; the CLI
// "lostarchives status" command prints the same results next to the lane
// health reported by a running daemon (CheckDaemon).
package preflight
