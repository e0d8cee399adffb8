package service

import (
	"context"
	"time"

	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
)

// ChatRoomService defines the chat room business logic. It is the only layer
// enforcing access control.
type ChatRoomService interface {
	CreateRoom(ctx context.Context, ownerID string, req *domain.CreateRoomRequest) (*domain.RoomSummary, error)
	UpdateRoom(ctx context.Context, roomID, userID string, req *domain.UpdateRoomRequest) error
	DeactivateRoom(ctx context.Context, roomID, userID string) error

	GetUserChatRooms(ctx context.Context, userID string) ([]domain.RoomSummary, error)
	GetChatRoomDetail(ctx context.Context, roomID, userID string) (*domain.RoomSummary, error)

	JoinRoom(ctx context.Context, roomID, userID string, role domain.MemberRole) (*domain.ChatMember, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	GetRoomMembers(ctx context.Context, roomID, userID string) ([]string, error)
	MarkAsRead(ctx context.Context, roomID, userID string) error

	SendMessage(ctx context.Context, roomID, userID string, req *domain.SendMessageRequest) (*domain.ChatMessage, error)
	ListMessages(ctx context.Context, roomID, userID string, before time.Time, limit int) ([]domain.ChatMessage, error)
}
