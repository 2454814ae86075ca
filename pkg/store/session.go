package store

import (
	"maps"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system" // outbound prompts only, never persisted
)

// Message is one persisted entry of a conversation
type Message struct {
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// Session groups the ordered turns of one conversation.
// Messages always holds complete user/assistant pairs once a turn has finished.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates an empty session stamped with now
func NewSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no message slice or metadata map with s.
// Metadata values themselves are copied shallowly.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = copyMessages(s.Messages)
	return &c
}

func copyMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Metadata = maps.Clone(m.Metadata)
		out[i] = m
	}
	return out
}

// Append adds messages in order and bumps UpdatedAt
func (s *Session) Append(now time.Time, messages ...Message) {
	s.Messages = append(s.Messages, messages...)
	s.UpdatedAt = now
}

// TrimTo keeps only the last n messages, dropping the oldest first
func (s *Session) TrimTo(n int) {
	if n < 0 || len(s.Messages) <= n {
		return
	}
	kept := make([]Message, n)
	copy(kept, s.Messages[len(s.Messages)-n:])
	s.Messages = kept
}

// Last returns up to the last n messages. n <= 0 returns everything.
func (s *Session) Last(n int) []Message {
	msgs := s.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return copyMessages(msgs)
}
