package domain

import "time"

// MessageKind tags the payload type of a chat message.
type MessageKind string

const (
	MessageKindText   MessageKind = "TEXT"
	MessageKindFile   MessageKind = "FILE"
	MessageKindImage  MessageKind = "IMAGE"
	MessageKindSystem MessageKind = "SYSTEM"
)

// Valid reports whether the kind is one of the known tags.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindFile, MessageKindImage, MessageKindSystem:
		return true
	}
	return false
}

// ChatMessage is an append-only chat message. Messages are never mutated or
// deleted once created.
type ChatMessage struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Body      string      `json:"body"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}

// SendMessageRequest represents a send message request.
type SendMessageRequest struct {
	Body string      `json:"body" binding:"required,min=1"`
	Kind MessageKind `json:"kind"`
}

// ListMessagesRequest represents a message history page request.
type ListMessagesRequest struct {
	Before string `form:"before"` // RFC3339; empty = newest
	Limit  int    `form:"limit"`
}
