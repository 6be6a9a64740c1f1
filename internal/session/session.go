// Package session manages the process session identity. Content stored with
// the session_only retention policy is tied to one of these ids and cleared
// by clear_temp_memory.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// registrar is the slice of the storage engine the session needs.
type registrar interface {
	RegisterSession(ctx context.Context, sessionID string) error
}

// Session is the immutable identity of one process run.
type Session struct {
	ID        string
	StartedAt time.Time
}

// Start mints a new session id and records it in the store.
func Start(ctx context.Context, store registrar) (*Session, error) {
	s := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	if err := store.RegisterSession(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}
