// Package production holds the job handlers that turn a story brief into a
// published video: script writing, per-scene illustration, narration and
// translation, rendering, review material and upload.
//
// Every handler loads what it needs from the queue store, calls the LLM or
// media collaborator, and writes the result back. A handler may run again for
// the same job after a retry or a reclaimed lease, so each one either skips
// work whose result is already stored or replaces it wholesale.
//
// NewRegistry wires the default HTTP collaborators; NewRegistryWithDependencies
// accepts fakes for tests.
package production
