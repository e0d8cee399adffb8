package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SparklePenguin/podpod-chat-service/internal/config"
	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
	"github.com/SparklePenguin/podpod-chat-service/pkg/log"
)

// Redis key patterns:
//
//	{prefix}:room:{room_id}:members       SET<user_id>  - active member ids
//	{prefix}:room:{room_id}:member_count  STRING<int>   - active member count
//	{prefix}:room:{room_id}:last_message  STRING<json>  - last message snapshot
type RedisRoomCache struct {
	client *redis.Client
	prefix string
}

// NewRedisRoomCache creates a new Redis-backed room cache.
func NewRedisRoomCache(cfg config.RedisConfig, prefix string) (*RedisRoomCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRoomCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *RedisRoomCache) membersKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:members", c.prefix, roomID)
}

func (c *RedisRoomCache) memberCountKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:member_count", c.prefix, roomID)
}

func (c *RedisRoomCache) lastMessageKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:last_message", c.prefix, roomID)
}

// GetMembers retrieves the cached active member-id set. An absent key is a
// miss, distinct from an empty set.
func (c *RedisRoomCache) GetMembers(ctx context.Context, roomID string) ([]string, error) {
	key := c.membersKey(roomID)

	pipe := c.client.TxPipeline()
	existsCmd := pipe.Exists(ctx, key)
	membersCmd := pipe.SMembers(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, c.miss(ctx, key, err)
	}

	if existsCmd.Val() == 0 {
		return nil, ErrCacheMiss
	}
	return membersCmd.Val(), nil
}

// SetMembers replaces the member-set entry. Empty lists are refused so a
// transient empty store result can never be pinned in the cache.
func (c *RedisRoomCache) SetMembers(ctx context.Context, roomID string, userIDs []string, ttl time.Duration) error {
	if len(userIDs) == 0 {
		return nil
	}

	key := c.membersKey(roomID)
	members := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		members[i] = id
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set members in redis: %w", err)
	}
	return nil
}

// AddMember adds a user to an existing member-set entry and bumps the cached
// count. When either key is absent it is left absent; the next read rebuilds
// it from the store. The exists check races with expiry, which is fine: the
// store stays authoritative and the worst case is one extra rebuild.
func (c *RedisRoomCache) AddMember(ctx context.Context, roomID, userID string, ttl time.Duration) error {
	membersKey := c.membersKey(roomID)
	countKey := c.memberCountKey(roomID)

	exists, err := c.client.Exists(ctx, membersKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check members key in redis: %w", err)
	}
	if exists == 1 {
		pipe := c.client.TxPipeline()
		added := pipe.SAdd(ctx, membersKey, userID)
		pipe.Expire(ctx, membersKey, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to add member in redis: %w", err)
		}
		if added.Val() == 0 {
			// Already present; leave the count alone.
			return nil
		}
	}

	countExists, err := c.client.Exists(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check count key in redis: %w", err)
	}
	if countExists == 1 {
		if err := c.client.Incr(ctx, countKey).Err(); err != nil {
			return fmt.Errorf("failed to bump member count in redis: %w", err)
		}
	}
	return nil
}

// RemoveMember drops the member-set and count entries for the room. Leaves are
// rare enough that a rebuild on the next read beats decrement bookkeeping.
func (c *RedisRoomCache) RemoveMember(ctx context.Context, roomID, userID string) error {
	if err := c.client.Del(ctx, c.membersKey(roomID), c.memberCountKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to drop member keys in redis: %w", err)
	}
	return nil
}

// GetMemberCount retrieves the cached active member count. Miss is distinct
// from zero.
func (c *RedisRoomCache) GetMemberCount(ctx context.Context, roomID string) (int, error) {
	key := c.memberCountKey(roomID)

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return 0, c.miss(ctx, key, err)
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, c.miss(ctx, key, err)
	}
	return count, nil
}

// SetMemberCount stores the active member count with a TTL.
func (c *RedisRoomCache) SetMemberCount(ctx context.Context, roomID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.memberCountKey(roomID), strconv.Itoa(count), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set member count in redis: %w", err)
	}
	return nil
}

// GetLastMessage retrieves the cached last-message snapshot.
func (c *RedisRoomCache) GetLastMessage(ctx context.Context, roomID string) (*domain.MessageSnapshot, error) {
	key := c.lastMessageKey(roomID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, c.miss(ctx, key, err)
	}

	var snapshot domain.MessageSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, c.miss(ctx, key, err)
	}
	return &snapshot, nil
}

// SetLastMessage stores the last-message snapshot with a TTL. Nil snapshots
// (empty room) are not cached.
func (c *RedisRoomCache) SetLastMessage(ctx context.Context, roomID string, snapshot *domain.MessageSnapshot, ttl time.Duration) error {
	if snapshot == nil {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal message snapshot: %w", err)
	}

	if err := c.client.Set(ctx, c.lastMessageKey(roomID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set last message in redis: %w", err)
	}
	return nil
}

// InvalidateRoom deletes every cache entry for the room.
func (c *RedisRoomCache) InvalidateRoom(ctx context.Context, roomID string) error {
	keys := []string{
		c.membersKey(roomID),
		c.memberCountKey(roomID),
		c.lastMessageKey(roomID),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate room in redis: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisRoomCache) Close() error {
	return c.client.Close()
}

// miss maps a backend error to ErrCacheMiss. Key absence is the normal miss
// path; anything else is logged first so a redis outage shows up in the logs
// without ever reaching callers.
func (c *RedisRoomCache) miss(ctx context.Context, key string, err error) error {
	if !errors.Is(err, redis.Nil) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache read degraded to miss")
	}
	return ErrCacheMiss
}
