package session

import (
	"errors"
	"time"

	"github.com/hupe1980/genui/model"
)

// ErrNotFound is returned by Lookup and Delete for unknown sessions.
var ErrNotFound = errors.New("session: not found")

// Session is a conversation thread.
type Session struct {
	ID        string          `json:"id"`
	Messages  []model.Message `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New creates an empty session.
func New(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a copy sharing no slices with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = make([]model.Message, len(s.Messages))
	for i, m := range s.Messages {
		if len(m.ToolCalls) > 0 {
			m.ToolCalls = append([]model.ToolCall(nil), m.ToolCalls...)
		}
		c.Messages[i] = m
	}
	return &c
}

// Store persists sessions.
type Store interface {
	// Get returns a snapshot of the session, creating it when absent.
	Get(sessionID string) (*Session, error)
	// Lookup returns a snapshot of an existing session without creating it.
	Lookup(sessionID string) (*Session, error)
	// Append adds messages to the session, creating it when absent.
	Append(sessionID string, msgs ...model.Message) error
	// Delete removes the session.
	Delete(sessionID string) error
}
