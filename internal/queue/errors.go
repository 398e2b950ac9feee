package queue

import "errors"

var (
	// ErrLeaseLost is returned when a worker resolves or heartbeats a job it
	// no longer holds, typically because the lease sweep reclaimed it.
	ErrLeaseLost = errors.New("job lease lost")

	// ErrInvalidState is returned when an operator action does not apply to
	// the story's current status.
	ErrInvalidState = errors.New("invalid story state")

	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
)
