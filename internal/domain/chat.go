package domain

import (
	"strings"
	"time"
)

// Role identifies the sender of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TurnStatus is the lifecycle state of a single turn.
type TurnStatus string

const (
	TurnPending   TurnStatus = "pending"
	TurnStreaming TurnStatus = "streaming"
	TurnComplete  TurnStatus = "complete"
	TurnErrored   TurnStatus = "errored"
	TurnCancelled TurnStatus = "cancelled"
)

// Terminal reports whether the status admits no further mutation.
func (s TurnStatus) Terminal() bool {
	return s == TurnComplete || s == TurnErrored || s == TurnCancelled
}

// Turn is one user or assistant message within a session. Content and
// Thinking grow append-only while the turn is pending or streaming and are
// frozen once the status is terminal.
type Turn struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id,omitempty"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	Status    TurnStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Session is a persisted, named collection of turns.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSessionTitle is the title of a session before one is derived from
// its first user message.
const DefaultSessionTitle = "New Chat"

// titleMaxLen is the truncation point for derived session titles.
const titleMaxLen = 50

// SessionTitle derives a session title from the first user message:
// the first 50 characters, trimmed, with an ellipsis when truncated.
func SessionTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= titleMaxLen {
		return firstMessage
	}
	return strings.TrimSpace(string(runes[:titleMaxLen])) + "..."
}

// NewMessage is the shape accepted by the history store when saving a turn.
type NewMessage struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// FrameKind discriminates decoded wire frames.
type FrameKind string

const (
	FrameContentDelta  FrameKind = "content-delta"
	FrameThinkingDelta FrameKind = "thinking-delta"
	FrameDone          FrameKind = "done"
	FrameError         FrameKind = "error"
)

// Frame is one decoded unit of the streaming wire protocol. Payload carries
// the text delta for delta kinds and the error message for error frames.
type Frame struct {
	Kind    FrameKind `json:"kind"`
	Payload string    `json:"payload,omitempty"`
}

// StreamEvent is the JSON payload of one server-sent event record, both as
// received from the inference endpoint and as relayed to the browser.
type StreamEvent struct {
	Content  string `json:"content,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Done     bool   `json:"done,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ChatMessage is one entry of the upstream request body.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body sent to the inference endpoint.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
}

// Model is one selectable entry of the model catalog.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider"`
	LogoURL     string `json:"logo_url,omitempty"`
}

// Stats represents system statistics.
type Stats struct {
	TotalSessions int `json:"total_sessions"`
	TotalMessages int `json:"total_messages"`
	TotalChats    int `json:"total_chats"`
}
