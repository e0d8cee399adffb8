package domain

import (
	"time"

	"github.com/SparklePenguin/podpod-chat-service/pkg/database"
)

// ChatRoomModel is the GORM model for the chat_rooms table.
type ChatRoomModel struct {
	ID        string           `gorm:"type:varchar(36);primaryKey"`
	OwnerID   string           `gorm:"type:varchar(36);index;not null"`
	Name      string           `gorm:"type:varchar(200);not null"`
	CoverURL  string           `gorm:"type:varchar(500)"`
	Metadata  database.JSONMap `gorm:"type:text"`
	IsActive  bool             `gorm:"index;not null;default:true"`
	CreatedAt time.Time        `gorm:"autoCreateTime"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for ChatRoomModel.
func (ChatRoomModel) TableName() string {
	return "chat_rooms"
}

// ToDomain converts ChatRoomModel to domain ChatRoom.
func (m *ChatRoomModel) ToDomain() *ChatRoom {
	return &ChatRoom{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		CoverURL:  m.CoverURL,
		Metadata:  m.Metadata,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// RoomToModel converts domain ChatRoom to ChatRoomModel.
func RoomToModel(r *ChatRoom) *ChatRoomModel {
	return &ChatRoomModel{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		CoverURL:  r.CoverURL,
		Metadata:  r.Metadata,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ChatMemberModel is the GORM model for the chat_members table. The composite
// unique index enforces at most one row per (room, user).
type ChatMemberModel struct {
	ID         uint       `gorm:"primaryKey"`
	RoomID     string     `gorm:"type:varchar(36);uniqueIndex:idx_room_user;not null"`
	UserID     string     `gorm:"type:varchar(36);uniqueIndex:idx_room_user;index;not null"`
	Role       string     `gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt   time.Time  `gorm:"autoCreateTime"`
	LeftAt     *time.Time `gorm:"index"`
	LastReadAt *time.Time
}

// TableName specifies the table name for ChatMemberModel.
func (ChatMemberModel) TableName() string {
	return "chat_members"
}

// ToDomain converts ChatMemberModel to domain ChatMember.
func (m *ChatMemberModel) ToDomain() *ChatMember {
	return &ChatMember{
		RoomID:     m.RoomID,
		UserID:     m.UserID,
		Role:       MemberRole(m.Role),
		JoinedAt:   m.JoinedAt,
		LeftAt:     m.LeftAt,
		LastReadAt: m.LastReadAt,
	}
}

// ChatMessageModel is the GORM model for the chat_messages table. Rows are
// append-only; nothing in the module updates or deletes them.
type ChatMessageModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	RoomID    string    `gorm:"type:varchar(36);index:idx_room_created;not null"`
	SenderID  string    `gorm:"type:varchar(36);index;not null"`
	Body      string    `gorm:"type:text;not null"`
	Kind      string    `gorm:"type:varchar(20);not null;default:'TEXT'"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_room_created"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts ChatMessageModel to domain ChatMessage.
func (m *ChatMessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		Kind:      MessageKind(m.Kind),
		CreatedAt: m.CreatedAt,
	}
}

// MessageToModel converts domain ChatMessage to ChatMessageModel.
func MessageToModel(msg *ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		Kind:      string(msg.Kind),
		CreatedAt: msg.CreatedAt,
	}
}
