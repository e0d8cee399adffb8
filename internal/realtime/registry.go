package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SparklePenguin/podpod-chat-service/internal/config"
)

// Event types published to the realtime transport.
const (
	EventChannelCreated = "channel.created"
	EventMemberJoined   = "member.joined"
	EventMemberLeft     = "member.left"
	EventMessageSent    = "message.sent"
)

// Event is the payload published on a room's event channel.
type Event struct {
	Type      string      `json:"type"`
	RoomID    string      `json:"room_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ChannelRegistry is the boundary to the realtime transport. The transport
// keeps its own channel metadata out-of-band from the chat_rooms row; this
// registry only checks/creates that metadata and publishes room events.
type ChannelRegistry interface {
	EnsureChannel(ctx context.Context, roomID string) error
	PublishEvent(ctx context.Context, roomID string, event *Event) error
	Close() error
}

// Redis key patterns:
//
//	{prefix}:channel:{room_id}   HASH    - channel metadata for the transport
//	{prefix}:events:{room_id}    PUBSUB  - room event channel
type redisChannelRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisChannelRegistry creates a Redis-backed channel registry.
func NewRedisChannelRegistry(cfg config.RedisConfig, prefix string) (ChannelRegistry, error) {
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

	return &redisChannelRegistry{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *redisChannelRegistry) channelKey(roomID string) string {
	return fmt.Sprintf("%s:channel:%s", r.prefix, roomID)
}

func (r *redisChannelRegistry) eventsChannel(roomID string) string {
	return fmt.Sprintf("%s:events:%s", r.prefix, roomID)
}

// EnsureChannel creates the channel metadata hash if it does not exist yet and
// announces the new channel. HSetNX on the room_id field guards against
// concurrent creators.
func (r *redisChannelRegistry) EnsureChannel(ctx context.Context, roomID string) error {
	key := r.channelKey(roomID)

	created, err := r.client.HSetNX(ctx, key, "room_id", roomID).Result()
	if err != nil {
		return fmt.Errorf("failed to ensure channel metadata: %w", err)
	}
	if !created {
		return nil
	}

	if err := r.client.HSet(ctx, key, "created_at", time.Now().Unix()).Err(); err != nil {
		return fmt.Errorf("failed to set channel metadata: %w", err)
	}

	return r.PublishEvent(ctx, roomID, &Event{
		Type:   EventChannelCreated,
		RoomID: roomID,
	})
}

// PublishEvent publishes a JSON event on the room's event channel.
func (r *redisChannelRegistry) PublishEvent(ctx context.Context, roomID string, event *Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.eventsChannel(roomID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *redisChannelRegistry) Close() error {
	return r.client.Close()
}
