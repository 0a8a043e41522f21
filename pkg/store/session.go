package store

import "time"

// MaxHistoryMessages caps the conversation window kept per session. Older
// turns fall off so triage prompts stay small.
const MaxHistoryMessages = 8

// Message is one conversation turn kept in session memory.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// Session represents the active research session state in memory.
type Session struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`

	// Metadata for last interaction
	LastQuery    string    `json:"last_query"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	// Rolling request timestamps for per-session rate limiting
	RequestLog []time.Time `json:"-"`
}

func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Append adds a turn and trims the window to MaxHistoryMessages.
func (s *Session) Append(role string, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
	if len(s.Messages) > MaxHistoryMessages {
		s.Messages = s.Messages[len(s.Messages)-MaxHistoryMessages:]
	}
	s.LastActiveAt = time.Now()
}
