package cache

import (
	"context"
	"errors"
	"time"

	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
)

// ErrCacheMiss is returned by every getter when the key is absent, expired, or
// the backend is unreachable. Callers fall back to the store and must never
// treat a miss as an empty result.
var ErrCacheMiss = errors.New("cache miss")

// RoomCache accelerates the three hot read patterns on a room: active member
// ids, member count, and last message. Entries are advisory views over the
// store, rebuildable at any time.
type RoomCache interface {
	GetMembers(ctx context.Context, roomID string) ([]string, error)
	SetMembers(ctx context.Context, roomID string, userIDs []string, ttl time.Duration) error
	// AddMember incrementally updates an existing member-set entry so a join
	// does not force a full rebuild. A missing entry stays missing.
	AddMember(ctx context.Context, roomID, userID string, ttl time.Duration) error
	RemoveMember(ctx context.Context, roomID, userID string) error

	GetMemberCount(ctx context.Context, roomID string) (int, error)
	SetMemberCount(ctx context.Context, roomID string, count int, ttl time.Duration) error

	GetLastMessage(ctx context.Context, roomID string) (*domain.MessageSnapshot, error)
	SetLastMessage(ctx context.Context, roomID string, snapshot *domain.MessageSnapshot, ttl time.Duration) error

	InvalidateRoom(ctx context.Context, roomID string) error
	Close() error
}
