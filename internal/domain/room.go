package domain

import (
	"time"

	"github.com/SparklePenguin/podpod-chat-service/pkg/database"
)

// ChatRoom represents a chat room. Rooms are deactivated, never hard-deleted;
// inactive rooms are invisible to every read path.
type ChatRoom struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id"`
	Name      string           `json:"name"`
	CoverURL  string           `json:"cover_url,omitempty"`
	Metadata  database.JSONMap `json:"metadata,omitempty"`
	IsActive  bool             `json:"is_active"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	Name     string           `json:"name" binding:"required,min=1,max=200"`
	CoverURL string           `json:"cover_url"`
	Metadata database.JSONMap `json:"metadata"`
}

// UpdateRoomRequest represents an update room request. Nil fields are left as-is.
type UpdateRoomRequest struct {
	Name     *string          `json:"name"`
	CoverURL *string          `json:"cover_url"`
	Metadata database.JSONMap `json:"metadata"`
}

// RoomSummary is a room enriched with membership-derived fields, as returned by
// the room list and room detail endpoints.
type RoomSummary struct {
	Room        ChatRoom         `json:"room"`
	MemberCount int              `json:"member_count"`
	UnreadCount int              `json:"unread_count"`
	LastMessage *MessageSnapshot `json:"last_message,omitempty"`
}

// MessageSnapshot is the denormalised last-message view kept in the cache and
// embedded in room summaries.
type MessageSnapshot struct {
	ID        string      `json:"id"`
	SenderID  string      `json:"sender_id"`
	Body      string      `json:"body"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}

// SnapshotOf builds a MessageSnapshot from a message. Returns nil for nil input
// so empty rooms flow through summaries without special-casing.
func SnapshotOf(msg *ChatMessage) *MessageSnapshot {
	if msg == nil {
		return nil
	}
	return &MessageSnapshot{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt,
	}
}
