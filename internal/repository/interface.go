package repository

import (
	"context"
	"errors"
	"time"

	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
)

// ChatRepository defines the interface for chat data persistence. The store is
// the source of truth; every method propagates backend errors unchanged.
type ChatRepository interface {
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error
	GetRoomByID(ctx context.Context, id string) (*domain.ChatRoom, error)
	UpdateRoom(ctx context.Context, id string, req *domain.UpdateRoomRequest) error
	DeactivateRoom(ctx context.Context, id string) error

	GetMember(ctx context.Context, roomID, userID string) (*domain.ChatMember, error)
	AddMember(ctx context.Context, roomID, userID string, role domain.MemberRole) (*domain.ChatMember, error)
	RemoveMember(ctx context.Context, roomID, userID string) error
	GetActiveMembers(ctx context.Context, roomID string) ([]domain.ChatMember, error)
	GetUserRooms(ctx context.Context, userID string) ([]domain.ChatRoom, error)
	UpdateLastReadAt(ctx context.Context, roomID, userID string) error

	CreateMessage(ctx context.Context, msg *domain.ChatMessage) error
	GetLastMessage(ctx context.Context, roomID string) (*domain.ChatMessage, error)
	ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]domain.ChatMessage, error)
	CountUnread(ctx context.Context, roomID, userID string, since *time.Time) (int, error)

	// Transaction runs fn against a transaction-bound repository. The
	// transaction is rolled back when fn returns an error, committed otherwise.
	Transaction(ctx context.Context, fn func(ChatRepository) error) error
}
