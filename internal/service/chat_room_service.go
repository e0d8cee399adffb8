package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SparklePenguin/podpod-chat-service/internal/audit"
	"github.com/SparklePenguin/podpod-chat-service/internal/cache"
	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
	"github.com/SparklePenguin/podpod-chat-service/internal/realtime"
	"github.com/SparklePenguin/podpod-chat-service/internal/repository"
	"github.com/SparklePenguin/podpod-chat-service/pkg/log"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrAccessDenied = errors.New("you are not a member of this room")
	ErrNotAMember   = errors.New("not an active member of this room")
	ErrNotRoomOwner = errors.New("you are not the owner of this room")
	ErrInvalidKind  = errors.New("invalid message kind")
)

// chatRoomServiceImpl implements ChatRoomService.
type chatRoomServiceImpl struct {
	repo     repository.ChatRepository
	cache    cache.RoomCache
	registry realtime.ChannelRegistry
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewChatRoomService creates a new chat room service.
func NewChatRoomService(
	repo repository.ChatRepository,
	roomCache cache.RoomCache,
	registry realtime.ChannelRegistry,
	cacheTTL time.Duration,
) ChatRoomService {
	return &chatRoomServiceImpl{
		repo:     repo,
		cache:    roomCache,
		registry: registry,
		cacheTTL: cacheTTL,
	}
}

// CreateRoom creates a room with the caller as owner and ensures the realtime
// channel metadata exists.
func (s *chatRoomServiceImpl) CreateRoom(ctx context.Context, ownerID string, req *domain.CreateRoomRequest) (*domain.RoomSummary, error) {
	room := &domain.ChatRoom{
		OwnerID:  ownerID,
		Name:     req.Name,
		CoverURL: req.CoverURL,
		Metadata: req.Metadata,
	}

	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	s.ensureChannel(ctx, room.ID)
	audit.Log(ctx, audit.ActionCreateRoom, ownerID, room.ID, "chat room created")

	return &domain.RoomSummary{
		Room:        *room,
		MemberCount: 1,
	}, nil
}

// UpdateRoom applies room updates. Owner only.
func (s *chatRoomServiceImpl) UpdateRoom(ctx context.Context, roomID, userID string, req *domain.UpdateRoomRequest) error {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != userID {
		return ErrNotRoomOwner
	}

	if err := s.repo.UpdateRoom(ctx, roomID, req); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	audit.Log(ctx, audit.ActionUpdateRoom, userID, roomID, "chat room updated")
	return nil
}

// DeactivateRoom soft-deletes a room and drops its cache entries. Owner only.
func (s *chatRoomServiceImpl) DeactivateRoom(ctx context.Context, roomID, userID string) error {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != userID {
		return ErrNotRoomOwner
	}

	if err := s.repo.DeactivateRoom(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	if err := s.cache.InvalidateRoom(ctx, roomID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("cache invalidation error")
	}
	audit.Log(ctx, audit.ActionDeactivateRoom, userID, roomID, "chat room deactivated")
	return nil
}

// GetUserChatRooms assembles summaries for every room the user actively
// belongs to, sorted by last-message time descending. Rooms without messages
// sort last; ties break on room id ascending so the order is total.
func (s *chatRoomServiceImpl) GetUserChatRooms(ctx context.Context, userID string) ([]domain.RoomSummary, error) {
	rooms, err := s.repo.GetUserRooms(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for i := range rooms {
		member, err := s.repo.GetMember(ctx, rooms[i].ID, userID)
		if err != nil {
			return nil, err
		}
		summary, err := s.buildSummary(ctx, &rooms[i], member)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessage, summaries[j].LastMessage
		switch {
		case a != nil && b != nil:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case a != nil:
			return true
		case b != nil:
			return false
		}
		return summaries[i].Room.ID < summaries[j].Room.ID
	})

	return summaries, nil
}

// GetChatRoomDetail returns the enriched summary for one room. Fails with
// ErrRoomNotFound before the membership check so a deactivated room never
// leaks through a stale member row.
func (s *chatRoomServiceImpl) GetChatRoomDetail(ctx context.Context, roomID, userID string) (*domain.RoomSummary, error) {
	room, member, err := s.activeMembership(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	return s.buildSummary(ctx, room, member)
}

// JoinRoom adds the user to the room: insert for new members, reactivation for
// returning ones, no-op when already active. The store write commits first;
// the cache mirror and event publish are best-effort.
func (s *chatRoomServiceImpl) JoinRoom(ctx context.Context, roomID, userID string, role domain.MemberRole) (*domain.ChatMember, error) {
	if _, err := s.activeRoom(ctx, roomID); err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.RoleMember
	}

	member, err := s.repo.AddMember(ctx, roomID, userID, role)
	if err != nil {
		return nil, err
	}

	if err := s.cache.AddMember(ctx, roomID, userID, s.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("cache member mirror error")
	}
	s.publishEvent(ctx, roomID, realtime.EventMemberJoined, userID)
	audit.Log(ctx, audit.ActionJoinRoom, userID, roomID, "member joined room")
	return member, nil
}

// LeaveRoom marks the member as left. Only the Active state can leave; any
// other state reports ErrNotAMember.
func (s *chatRoomServiceImpl) LeaveRoom(ctx context.Context, roomID, userID string) error {
	if _, err := s.activeRoom(ctx, roomID); err != nil {
		return err
	}

	if err := s.repo.RemoveMember(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrNotAMember
		}
		return err
	}

	if err := s.cache.RemoveMember(ctx, roomID, userID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("cache member drop error")
	}
	s.publishEvent(ctx, roomID, realtime.EventMemberLeft, userID)
	audit.Log(ctx, audit.ActionLeaveRoom, userID, roomID, "member left room")
	return nil
}

// GetRoomMembers returns the active member ids, cache-first. Empty results are
// served from the store but never cached.
func (s *chatRoomServiceImpl) GetRoomMembers(ctx context.Context, roomID, userID string) ([]string, error) {
	if _, _, err := s.activeMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.resolveMembers(ctx, roomID)
}

// MarkAsRead persists the member's read marker inside a transaction.
func (s *chatRoomServiceImpl) MarkAsRead(ctx context.Context, roomID, userID string) error {
	if _, _, err := s.activeMembership(ctx, roomID, userID); err != nil {
		return err
	}

	err := s.repo.Transaction(ctx, func(txRepo repository.ChatRepository) error {
		return txRepo.UpdateLastReadAt(ctx, roomID, userID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrNotAMember
		}
		return err
	}
	audit.Log(ctx, audit.ActionMarkRead, userID, roomID, "room marked as read")
	return nil
}

// SendMessage appends a message and writes the last-message snapshot through
// to the cache.
func (s *chatRoomServiceImpl) SendMessage(ctx context.Context, roomID, userID string, req *domain.SendMessageRequest) (*domain.ChatMessage, error) {
	if _, _, err := s.activeMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	msg := &domain.ChatMessage{
		RoomID:   roomID,
		SenderID: userID,
		Body:     req.Body,
		Kind:     kind,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.cache.SetLastMessage(ctx, roomID, domain.SnapshotOf(msg), s.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("last message cache write error")
	}
	s.publishEvent(ctx, roomID, realtime.EventMessageSent, msg)
	return msg, nil
}

// ListMessages returns a newest-first history page for an active member.
func (s *chatRoomServiceImpl) ListMessages(ctx context.Context, roomID, userID string, before time.Time, limit int) ([]domain.ChatMessage, error) {
	if _, _, err := s.activeMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, roomID, before, limit)
}

// activeRoom resolves an active room or ErrRoomNotFound.
func (s *chatRoomServiceImpl) activeRoom(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	room, err := s.repo.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return room, nil
}

// activeMembership resolves the room and requires the caller to be an active
// member. NonMember and LeftMember both resolve to ErrAccessDenied.
func (s *chatRoomServiceImpl) activeMembership(ctx context.Context, roomID, userID string) (*domain.ChatRoom, *domain.ChatMember, error) {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}

	member, err := s.repo.GetMember(ctx, roomID, userID)
	if err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
		return nil, nil, err
	}
	if member.State() != domain.MembershipActive {
		return nil, nil, ErrAccessDenied
	}
	return room, member, nil
}

// buildSummary enriches a room with member count, last message, and unread
// count. Count and last message go through the cache; the unread count is
// member-specific and always comes from the store.
func (s *chatRoomServiceImpl) buildSummary(ctx context.Context, room *domain.ChatRoom, member *domain.ChatMember) (*domain.RoomSummary, error) {
	roomID := room.ID

	count, err := resolveCached(ctx, &s.sf, "member_count:"+roomID,
		func(ctx context.Context) (int, error) {
			return s.cache.GetMemberCount(ctx, roomID)
		},
		func(ctx context.Context) (int, error) {
			members, err := s.repo.GetActiveMembers(ctx, roomID)
			if err != nil {
				return 0, err
			}
			return len(members), nil
		},
		func(ctx context.Context, count int) error {
			return s.cache.SetMemberCount(ctx, roomID, count, s.cacheTTL)
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	lastMsg, err := resolveCached(ctx, &s.sf, "last_message:"+roomID,
		func(ctx context.Context) (*domain.MessageSnapshot, error) {
			return s.cache.GetLastMessage(ctx, roomID)
		},
		func(ctx context.Context) (*domain.MessageSnapshot, error) {
			msg, err := s.repo.GetLastMessage(ctx, roomID)
			if err != nil {
				return nil, err
			}
			return domain.SnapshotOf(msg), nil
		},
		func(ctx context.Context, snapshot *domain.MessageSnapshot) error {
			return s.cache.SetLastMessage(ctx, roomID, snapshot, s.cacheTTL)
		},
		func(snapshot *domain.MessageSnapshot) bool { return snapshot != nil },
	)
	if err != nil {
		return nil, err
	}

	unread, err := s.repo.CountUnread(ctx, roomID, member.UserID, member.LastReadAt)
	if err != nil {
		return nil, err
	}

	return &domain.RoomSummary{
		Room:        *room,
		MemberCount: count,
		UnreadCount: unread,
		LastMessage: lastMsg,
	}, nil
}

// resolveMembers is the cache-first member-id lookup. Non-empty store results
// warm the cache; empty ones do not.
func (s *chatRoomServiceImpl) resolveMembers(ctx context.Context, roomID string) ([]string, error) {
	return resolveCached(ctx, &s.sf, "members:"+roomID,
		func(ctx context.Context) ([]string, error) {
			return s.cache.GetMembers(ctx, roomID)
		},
		func(ctx context.Context) ([]string, error) {
			members, err := s.repo.GetActiveMembers(ctx, roomID)
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(members))
			for i, m := range members {
				ids[i] = m.UserID
			}
			return ids, nil
		},
		func(ctx context.Context, ids []string) error {
			return s.cache.SetMembers(ctx, roomID, ids, s.cacheTTL)
		},
		func(ids []string) bool { return len(ids) > 0 },
	)
}

func (s *chatRoomServiceImpl) ensureChannel(ctx context.Context, roomID string) {
	if s.registry == nil {
		return
	}
	if err := s.registry.EnsureChannel(ctx, roomID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("realtime channel ensure error")
	}
}

func (s *chatRoomServiceImpl) publishEvent(ctx context.Context, roomID, eventType string, payload interface{}) {
	if s.registry == nil {
		return
	}
	err := s.registry.PublishEvent(ctx, roomID, &realtime.Event{
		Type:    eventType,
		RoomID:  roomID,
		Payload: payload,
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("realtime event publish error")
	}
}
