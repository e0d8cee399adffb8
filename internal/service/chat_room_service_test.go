package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SparklePenguin/podpod-chat-service/internal/cache"
	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
	"github.com/SparklePenguin/podpod-chat-service/internal/repository"
)

// fakeRepo is an in-memory ChatRepository with store call counters.
type fakeRepo struct {
	rooms    map[string]*domain.ChatRoom
	members  map[string]map[string]*domain.ChatMember // roomID -> userID -> member
	messages map[string][]domain.ChatMessage

	activeMembersCalls int
	lastMessageCalls   int
	emptyActiveMembers bool
	removeErr          error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rooms:    map[string]*domain.ChatRoom{},
		members:  map[string]map[string]*domain.ChatMember{},
		messages: map[string][]domain.ChatMessage{},
	}
}

func (f *fakeRepo) addRoom(id, ownerID string, active bool) *domain.ChatRoom {
	room := &domain.ChatRoom{ID: id, OwnerID: ownerID, Name: "room " + id, IsActive: active}
	f.rooms[id] = room
	return room
}

func (f *fakeRepo) addActiveMember(roomID, userID string, role domain.MemberRole) *domain.ChatMember {
	if f.members[roomID] == nil {
		f.members[roomID] = map[string]*domain.ChatMember{}
	}
	m := &domain.ChatMember{RoomID: roomID, UserID: userID, Role: role, JoinedAt: time.Now()}
	f.members[roomID][userID] = m
	return m
}

func (f *fakeRepo) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	room.ID = "room-" + room.Name
	room.IsActive = true
	f.rooms[room.ID] = room
	f.addActiveMember(room.ID, room.OwnerID, domain.RoleOwner)
	return nil
}

func (f *fakeRepo) GetRoomByID(ctx context.Context, id string) (*domain.ChatRoom, error) {
	room, ok := f.rooms[id]
	if !ok || !room.IsActive {
		return nil, repository.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeRepo) UpdateRoom(ctx context.Context, id string, req *domain.UpdateRoomRequest) error {
	room, ok := f.rooms[id]
	if !ok || !room.IsActive {
		return repository.ErrRoomNotFound
	}
	if req.Name != nil {
		room.Name = *req.Name
	}
	return nil
}

func (f *fakeRepo) DeactivateRoom(ctx context.Context, id string) error {
	room, ok := f.rooms[id]
	if !ok || !room.IsActive {
		return repository.ErrRoomNotFound
	}
	room.IsActive = false
	return nil
}

func (f *fakeRepo) GetMember(ctx context.Context, roomID, userID string) (*domain.ChatMember, error) {
	if m, ok := f.members[roomID][userID]; ok {
		return m, nil
	}
	return nil, repository.ErrMemberNotFound
}

func (f *fakeRepo) AddMember(ctx context.Context, roomID, userID string, role domain.MemberRole) (*domain.ChatMember, error) {
	if m, ok := f.members[roomID][userID]; ok {
		if m.LeftAt != nil {
			m.LeftAt = nil
			m.Role = role
		}
		return m, nil
	}
	return f.addActiveMember(roomID, userID, role), nil
}

func (f *fakeRepo) RemoveMember(ctx context.Context, roomID, userID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	m, ok := f.members[roomID][userID]
	if !ok || m.LeftAt != nil {
		return repository.ErrMemberNotFound
	}
	now := time.Now()
	m.LeftAt = &now
	return nil
}

func (f *fakeRepo) GetActiveMembers(ctx context.Context, roomID string) ([]domain.ChatMember, error) {
	f.activeMembersCalls++
	if f.emptyActiveMembers {
		return nil, nil
	}
	var out []domain.ChatMember
	for _, m := range f.members[roomID] {
		if m.LeftAt == nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetUserRooms(ctx context.Context, userID string) ([]domain.ChatRoom, error) {
	var out []domain.ChatRoom
	for roomID, members := range f.members {
		m, ok := members[userID]
		if !ok || m.LeftAt != nil {
			continue
		}
		if room, ok := f.rooms[roomID]; ok && room.IsActive {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateLastReadAt(ctx context.Context, roomID, userID string) error {
	m, ok := f.members[roomID][userID]
	if !ok || m.LeftAt != nil {
		return repository.ErrMemberNotFound
	}
	now := time.Now()
	m.LastReadAt = &now
	return nil
}

func (f *fakeRepo) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	msg.ID = "msg-" + msg.Body
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	f.messages[msg.RoomID] = append(f.messages[msg.RoomID], *msg)
	return nil
}

func (f *fakeRepo) GetLastMessage(ctx context.Context, roomID string) (*domain.ChatMessage, error) {
	f.lastMessageCalls++
	msgs := f.messages[roomID]
	if len(msgs) == 0 {
		return nil, nil
	}
	last := msgs[0]
	for _, m := range msgs[1:] {
		if m.CreatedAt.After(last.CreatedAt) {
			last = m
		}
	}
	return &last, nil
}

func (f *fakeRepo) ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]domain.ChatMessage, error) {
	return f.messages[roomID], nil
}

func (f *fakeRepo) CountUnread(ctx context.Context, roomID, userID string, since *time.Time) (int, error) {
	count := 0
	for _, m := range f.messages[roomID] {
		if m.SenderID == userID {
			continue
		}
		if since != nil && !m.CreatedAt.After(*since) {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeRepo) Transaction(ctx context.Context, fn func(repository.ChatRepository) error) error {
	return fn(f)
}

// fakeCache is an in-memory RoomCache. TTLs are accepted and ignored.
type fakeCache struct {
	members     map[string][]string
	counts      map[string]int
	lastMsgs    map[string]*domain.MessageSnapshot
	addCalls    int
	addErr      error
	setMembers  int
	removeCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		members:  map[string][]string{},
		counts:   map[string]int{},
		lastMsgs: map[string]*domain.MessageSnapshot{},
	}
}

func (f *fakeCache) GetMembers(ctx context.Context, roomID string) ([]string, error) {
	if ids, ok := f.members[roomID]; ok {
		return ids, nil
	}
	return nil, cache.ErrCacheMiss
}

func (f *fakeCache) SetMembers(ctx context.Context, roomID string, userIDs []string, ttl time.Duration) error {
	f.setMembers++
	if len(userIDs) == 0 {
		return nil
	}
	f.members[roomID] = userIDs
	return nil
}

func (f *fakeCache) AddMember(ctx context.Context, roomID, userID string, ttl time.Duration) error {
	f.addCalls++
	if f.addErr != nil {
		return f.addErr
	}
	if ids, ok := f.members[roomID]; ok {
		f.members[roomID] = append(ids, userID)
	}
	if _, ok := f.counts[roomID]; ok {
		f.counts[roomID]++
	}
	return nil
}

func (f *fakeCache) RemoveMember(ctx context.Context, roomID, userID string) error {
	f.removeCalls++
	delete(f.members, roomID)
	delete(f.counts, roomID)
	return nil
}

func (f *fakeCache) GetMemberCount(ctx context.Context, roomID string) (int, error) {
	if count, ok := f.counts[roomID]; ok {
		return count, nil
	}
	return 0, cache.ErrCacheMiss
}

func (f *fakeCache) SetMemberCount(ctx context.Context, roomID string, count int, ttl time.Duration) error {
	f.counts[roomID] = count
	return nil
}

func (f *fakeCache) GetLastMessage(ctx context.Context, roomID string) (*domain.MessageSnapshot, error) {
	if snap, ok := f.lastMsgs[roomID]; ok {
		return snap, nil
	}
	return nil, cache.ErrCacheMiss
}

func (f *fakeCache) SetLastMessage(ctx context.Context, roomID string, snapshot *domain.MessageSnapshot, ttl time.Duration) error {
	if snapshot == nil {
		return nil
	}
	f.lastMsgs[roomID] = snapshot
	return nil
}

func (f *fakeCache) InvalidateRoom(ctx context.Context, roomID string) error {
	delete(f.members, roomID)
	delete(f.counts, roomID)
	delete(f.lastMsgs, roomID)
	return nil
}

func (f *fakeCache) Close() error { return nil }

func newTestService(repo *fakeRepo, roomCache *fakeCache) ChatRoomService {
	return NewChatRoomService(repo, roomCache, nil, 5*time.Minute)
}

func TestGetChatRoomDetailAccessControl(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "owner", domain.RoleOwner)

	// Non-member.
	_, err := svc.GetChatRoomDetail(ctx, "room-1", "stranger")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Left member.
	left := repo.addActiveMember("room-1", "quitter", domain.RoleMember)
	now := time.Now()
	left.LeftAt = &now
	_, err = svc.GetChatRoomDetail(ctx, "room-1", "quitter")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Inactive room wins over an existing member row.
	inactive := repo.addRoom("room-2", "owner", false)
	repo.addActiveMember(inactive.ID, "owner", domain.RoleOwner)
	_, err = svc.GetChatRoomDetail(ctx, inactive.ID, "owner")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// Active member succeeds.
	summary, err := svc.GetChatRoomDetail(ctx, "room-1", "owner")
	require.NoError(t, err)
	assert.Equal(t, "room-1", summary.Room.ID)
	assert.Equal(t, 1, summary.MemberCount)
}

func TestMemberCountWarmsTheCache(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "owner", domain.RoleOwner)
	repo.addActiveMember("room-1", "user-1", domain.RoleMember)

	_, err := svc.GetChatRoomDetail(ctx, "room-1", "owner")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.activeMembersCalls)
	assert.Equal(t, 2, roomCache.counts["room-1"])

	// Second read is served from the cache: no further store reads.
	summary, err := svc.GetChatRoomDetail(ctx, "room-1", "owner")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.MemberCount)
	assert.Equal(t, 1, repo.activeMembersCalls)
}

func TestGetRoomMembersWarmsTheCache(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "owner", domain.RoleOwner)
	repo.addActiveMember("room-1", "user-1", domain.RoleMember)

	ids, err := svc.GetRoomMembers(ctx, "room-1", "owner")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 1, repo.activeMembersCalls)
	assert.ElementsMatch(t, []string{"owner", "user-1"}, roomCache.members["room-1"])

	// Second read comes from the cache.
	_, err = svc.GetRoomMembers(ctx, "room-1", "owner")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.activeMembersCalls)
}

func TestGetRoomMembersEmptyResultIsNotCached(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "owner", domain.RoleOwner)
	// The store reports no active members even though the access check passes;
	// the empty result must not be pinned in the cache.
	repo.emptyActiveMembers = true

	ids, err := svc.GetRoomMembers(ctx, "room-1", "owner")
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, cached := roomCache.members["room-1"]
	assert.False(t, cached)

	// Every read goes back to the store until it has members again.
	storeReads := repo.activeMembersCalls
	_, err = svc.GetRoomMembers(ctx, "room-1", "owner")
	require.NoError(t, err)
	assert.Greater(t, repo.activeMembersCalls, storeReads)
}

func TestGetUserChatRoomsSorting(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	for _, id := range []string{"room-a", "room-b", "room-c"} {
		repo.addRoom(id, "owner", true)
		repo.addActiveMember(id, "user-1", domain.RoleMember)
	}
	// A: last message at t=10, B: no messages, C: last message at t=20.
	repo.messages["room-a"] = []domain.ChatMessage{{
		ID: "m1", RoomID: "room-a", SenderID: "owner", Body: "a", Kind: domain.MessageKindText, CreatedAt: base.Add(10 * time.Second),
	}}
	repo.messages["room-c"] = []domain.ChatMessage{{
		ID: "m2", RoomID: "room-c", SenderID: "owner", Body: "c", Kind: domain.MessageKindText, CreatedAt: base.Add(20 * time.Second),
	}}

	summaries, err := svc.GetUserChatRooms(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "room-c", summaries[0].Room.ID)
	assert.Equal(t, "room-a", summaries[1].Room.ID)
	assert.Equal(t, "room-b", summaries[2].Room.ID)
	assert.Nil(t, summaries[2].LastMessage)
}

func TestJoinRoomMirrorsIntoCache(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "owner", domain.RoleOwner)
	roomCache.members["room-1"] = []string{"owner"}
	roomCache.counts["room-1"] = 1

	member, err := svc.JoinRoom(ctx, "room-1", "user-1", domain.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipActive, member.State())
	assert.Equal(t, 1, roomCache.addCalls)
	assert.Contains(t, roomCache.members["room-1"], "user-1")
	assert.Equal(t, 2, roomCache.counts["room-1"])
}

func TestJoinRoomSurvivesCacheFailure(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	roomCache.addErr = assert.AnError
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)

	member, err := svc.JoinRoom(ctx, "room-1", "user-1", domain.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipActive, member.State())
}

func TestJoinRoomOnMissingRoom(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeCache())

	_, err := svc.JoinRoom(context.Background(), "nope", "user-1", domain.RoleMember)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveRoomTransitions(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "user-1", domain.RoleMember)

	// Active -> Left succeeds and drops cache entries.
	roomCache.members["room-1"] = []string{"user-1"}
	require.NoError(t, svc.LeaveRoom(ctx, "room-1", "user-1"))
	assert.Equal(t, 1, roomCache.removeCalls)

	// Left -> leave again fails.
	assert.ErrorIs(t, svc.LeaveRoom(ctx, "room-1", "user-1"), ErrNotAMember)

	// Never a member.
	assert.ErrorIs(t, svc.LeaveRoom(ctx, "room-1", "ghost"), ErrNotAMember)
}

func TestMarkAsRead(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeCache())
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "user-1", domain.RoleMember)

	require.NoError(t, svc.MarkAsRead(ctx, "room-1", "user-1"))
	assert.NotNil(t, repo.members["room-1"]["user-1"].LastReadAt)

	// Left members cannot mark as read.
	now := time.Now()
	repo.members["room-1"]["user-1"].LeftAt = &now
	assert.ErrorIs(t, svc.MarkAsRead(ctx, "room-1", "user-1"), ErrAccessDenied)
}

func TestSendMessageUpdatesLastMessageCache(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "user-1", domain.RoleMember)

	msg, err := svc.SendMessage(ctx, "room-1", "user-1", &domain.SendMessageRequest{Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageKindText, msg.Kind)

	snap := roomCache.lastMsgs["room-1"]
	require.NotNil(t, snap)
	assert.Equal(t, msg.ID, snap.ID)
	assert.Equal(t, "hello", snap.Body)

	// Unknown kinds are rejected.
	_, err = svc.SendMessage(ctx, "room-1", "user-1", &domain.SendMessageRequest{Body: "x", Kind: "VIDEO"})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestDeactivateRoomOwnerOnly(t *testing.T) {
	repo := newFakeRepo()
	roomCache := newFakeCache()
	svc := newTestService(repo, roomCache)
	ctx := context.Background()

	repo.addRoom("room-1", "owner", true)
	repo.addActiveMember("room-1", "owner", domain.RoleOwner)
	repo.addActiveMember("room-1", "user-1", domain.RoleMember)
	roomCache.counts["room-1"] = 2

	assert.ErrorIs(t, svc.DeactivateRoom(ctx, "room-1", "user-1"), ErrNotRoomOwner)

	require.NoError(t, svc.DeactivateRoom(ctx, "room-1", "owner"))
	assert.False(t, repo.rooms["room-1"].IsActive)
	_, ok := roomCache.counts["room-1"]
	assert.False(t, ok)
}

func TestCreateRoom(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeCache())

	summary, err := svc.CreateRoom(context.Background(), "owner", &domain.CreateRoomRequest{Name: "pod"})
	require.NoError(t, err)
	assert.Equal(t, "owner", summary.Room.OwnerID)
	assert.Equal(t, 1, summary.MemberCount)

	member, err := repo.GetMember(context.Background(), summary.Room.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, member.Role)
}
