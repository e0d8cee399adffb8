package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
	"github.com/SparklePenguin/podpod-chat-service/pkg/log"
)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// CreateRoom creates a room and its owner membership row in one transaction.
func (r *GormChatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	l := log.Ctx(ctx)

	room.ID = uuid.New().String()
	room.IsActive = true

	model := domain.RoomToModel(room)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		owner := &domain.ChatMemberModel{
			RoomID: room.ID,
			UserID: room.OwnerID,
			Role:   string(domain.RoleOwner),
		}
		return tx.Create(owner).Error
	})
	if err != nil {
		l.Error().Err(err).Msg("failed to create room in db")
		return err
	}

	room.CreatedAt = model.CreatedAt
	room.UpdatedAt = model.UpdatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetRoomByID retrieves an active room by ID. Deactivated rooms are reported
// as not found.
func (r *GormChatRepository) GetRoomByID(ctx context.Context, id string) (*domain.ChatRoom, error) {
	l := log.Ctx(ctx)

	var model domain.ChatRoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ? AND is_active = ?", id, true)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// UpdateRoom applies the non-nil fields of the request to an active room.
func (r *GormChatRepository) UpdateRoom(ctx context.Context, id string, req *domain.UpdateRoomRequest) error {
	l := log.Ctx(ctx)

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.CoverURL != nil {
		updates["cover_url"] = *req.CoverURL
	}
	if req.Metadata != nil {
		updates["metadata"] = req.Metadata
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&domain.ChatRoomModel{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(updates)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to update room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeactivateRoom soft-deletes a room by clearing the active flag.
func (r *GormChatRepository) DeactivateRoom(ctx context.Context, id string) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.ChatRoomModel{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to deactivate room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	l.Debug().Str(log.FieldRoomID, id).Msg("room deactivated in db")
	return nil
}

// GetMember retrieves a member row regardless of left state.
func (r *GormChatRepository) GetMember(ctx context.Context, roomID, userID string) (*domain.ChatMember, error) {
	l := log.Ctx(ctx)

	var model domain.ChatMemberModel
	result := r.db.WithContext(ctx).First(&model, "room_id = ? AND user_id = ?", roomID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Msg("failed to get member")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// AddMember inserts a member row, or reactivates an existing one. Idempotent:
// an already-active member is returned unchanged.
func (r *GormChatRepository) AddMember(ctx context.Context, roomID, userID string, role domain.MemberRole) (*domain.ChatMember, error) {
	l := log.Ctx(ctx)

	var member *domain.ChatMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.ChatMemberModel
		result := tx.First(&model, "room_id = ? AND user_id = ?", roomID, userID)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			model = domain.ChatMemberModel{
				RoomID: roomID,
				UserID: userID,
				Role:   string(role),
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
			member = model.ToDomain()
			return nil
		}

		if model.LeftAt == nil {
			// Already active: no-op.
			member = model.ToDomain()
			return nil
		}

		// Rejoin: clear left_at, take the new role.
		if err := tx.Model(&model).Updates(map[string]interface{}{
			"left_at": nil,
			"role":    string(role),
		}).Error; err != nil {
			return err
		}
		model.LeftAt = nil
		model.Role = string(role)
		member = model.ToDomain()
		return nil
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Msg("failed to add member")
		return nil, err
	}
	return member, nil
}

// RemoveMember marks a member as left. Fails with ErrMemberNotFound when the
// row is absent or already left.
func (r *GormChatRepository) RemoveMember(ctx context.Context, roomID, userID string) error {
	l := log.Ctx(ctx)

	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.ChatMemberModel{}).
		Where("room_id = ? AND user_id = ? AND left_at IS NULL", roomID, userID).
		Update("left_at", now)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Msg("failed to remove member")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	l.Debug().Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Msg("member left room")
	return nil
}

// GetActiveMembers retrieves members that have not left the room.
func (r *GormChatRepository) GetActiveMembers(ctx context.Context, roomID string) ([]domain.ChatMember, error) {
	l := log.Ctx(ctx)

	var models []domain.ChatMemberModel
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND left_at IS NULL", roomID).
		Order("joined_at ASC").
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to get active members")
		return nil, result.Error
	}

	members := make([]domain.ChatMember, len(models))
	for i, model := range models {
		members[i] = *model.ToDomain()
	}
	return members, nil
}

// GetUserRooms retrieves the active rooms the user actively belongs to.
func (r *GormChatRepository) GetUserRooms(ctx context.Context, userID string) ([]domain.ChatRoom, error) {
	l := log.Ctx(ctx)

	var models []domain.ChatRoomModel
	result := r.db.WithContext(ctx).Model(&domain.ChatRoomModel{}).
		Joins("JOIN chat_members ON chat_members.room_id = chat_rooms.id").
		Where("chat_members.user_id = ? AND chat_members.left_at IS NULL AND chat_rooms.is_active = ?", userID, true).
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldUserID, userID).Msg("failed to get user rooms from db")
		return nil, result.Error
	}

	rooms := make([]domain.ChatRoom, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, nil
}

// UpdateLastReadAt sets the member's last-read timestamp to now.
func (r *GormChatRepository) UpdateLastReadAt(ctx context.Context, roomID, userID string) error {
	l := log.Ctx(ctx)

	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.ChatMemberModel{}).
		Where("room_id = ? AND user_id = ? AND left_at IS NULL", roomID, userID).
		Update("last_read_at", now)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Str(log.FieldUserID, userID).Msg("failed to update last read at")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// CreateMessage appends a message to the room.
func (r *GormChatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	msg.ID = uuid.New().String()
	model := domain.MessageToModel(msg)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, msg.RoomID).Msg("failed to create message in db")
		return result.Error
	}
	msg.CreatedAt = model.CreatedAt
	return nil
}

// GetLastMessage retrieves the newest message in a room. Returns nil without
// an error when the room has no messages.
func (r *GormChatRepository) GetLastMessage(ctx context.Context, roomID string) (*domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	var model domain.ChatMessageModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to get last message")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListMessages retrieves a newest-first page of messages created before the
// given time.
func (r *GormChatRepository) ListMessages(ctx context.Context, roomID string, before time.Time, limit int) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	if limit < 1 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var models []domain.ChatMessageModel
	result := query.Order("created_at DESC").Limit(limit).Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		return nil, result.Error
	}

	messages := make([]domain.ChatMessage, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// CountUnread counts messages by other users created after since. A nil since
// counts every message by others.
func (r *GormChatRepository) CountUnread(ctx context.Context, roomID, userID string, since *time.Time) (int, error) {
	l := log.Ctx(ctx)

	query := r.db.WithContext(ctx).Model(&domain.ChatMessageModel{}).
		Where("room_id = ? AND sender_id <> ?", roomID, userID)
	if since != nil {
		query = query.Where("created_at > ?", *since)
	}

	var count int64
	result := query.Count(&count)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to count unread messages")
		return 0, result.Error
	}
	return int(count), nil
}

// Transaction runs fn against a transaction-bound repository.
func (r *GormChatRepository) Transaction(ctx context.Context, fn func(ChatRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormChatRepository{db: tx})
	})
}
