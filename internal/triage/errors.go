package triage

import (
	"errors"
	"fmt"
)

// State errors are fatal to a single request but never mutate the session.
var (
	ErrSessionNotFound = errors.New("triage: session not found")
	ErrSessionComplete = errors.New("triage: session already complete")

	// ErrTurnInFlight is returned when a second Submit arrives for a session
	// whose previous turn has not finished. Turns must be serialized per
	// session; concurrent submissions are rejected, not queued.
	ErrTurnInFlight = errors.New("triage: turn already in flight for session")
)

// ValidationError reports malformed session or message input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("triage: invalid %s: %s", e.Field, e.Reason)
}
