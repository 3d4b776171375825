package triage

import "context"

// Store persists triage sessions. Implementations return a session the
// caller may mutate freely; Put replaces the stored session wholesale.
// Get returns ErrSessionNotFound when the ID is unknown.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
