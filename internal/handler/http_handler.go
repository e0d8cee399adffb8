package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
	"github.com/SparklePenguin/podpod-chat-service/internal/service"
	"github.com/SparklePenguin/podpod-chat-service/pkg/log"
	"github.com/SparklePenguin/podpod-chat-service/pkg/middleware"
	"github.com/SparklePenguin/podpod-chat-service/pkg/response"
)

// Handler handles HTTP requests for the chat service.
type Handler struct {
	chatService    service.ChatRoomService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(chatService service.ChatRoomService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		chatService:    chatService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/chat")
	{
		rooms := api.Group("/rooms", h.authMiddleware.RequireAuth())
		{
			rooms.POST("", h.CreateRoom)
			rooms.GET("", h.GetMyRooms)
			rooms.GET("/:id", h.GetRoomDetail)
			rooms.PATCH("/:id", h.UpdateRoom)
			rooms.DELETE("/:id", h.DeactivateRoom)

			rooms.POST("/:id/members", h.JoinRoom)
			rooms.DELETE("/:id/members/me", h.LeaveRoom)
			rooms.GET("/:id/members", h.GetRoomMembers)
			rooms.POST("/:id/read", h.MarkAsRead)

			rooms.POST("/:id/messages", h.SendMessage)
			rooms.GET("/:id/messages", h.ListMessages)
		}
	}
}

// CreateRoom creates a new chat room.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, err.Error())
		return
	}

	summary, err := h.chatService.CreateRoom(ctx, userID, &req)
	if err != nil {
		l.Error().Err(err).Msg("failed to create room")
		response.InternalError(c, "failed to create room")
		return
	}

	response.Created(c, summary)
}

// GetMyRooms returns the caller's room summaries.
func (h *Handler) GetMyRooms(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	summaries, err := h.chatService.GetUserChatRooms(ctx, userID)
	if err != nil {
		l.Error().Err(err).Msg("failed to get user chat rooms")
		response.InternalError(c, "failed to get rooms")
		return
	}

	response.Success(c, gin.H{"rooms": summaries})
}

// GetRoomDetail returns one enriched room summary.
func (h *Handler) GetRoomDetail(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	summary, err := h.chatService.GetChatRoomDetail(ctx, roomID, userID)
	if err != nil {
		h.writeServiceError(c, err, roomID, "failed to get room detail")
		return
	}

	response.Success(c, summary)
}

// UpdateRoom updates room fields. Owner only.
func (h *Handler) UpdateRoom(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	var req domain.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.chatService.UpdateRoom(ctx, roomID, userID, &req); err != nil {
		h.writeServiceError(c, err, roomID, "failed to update room")
		return
	}

	response.Success(c, gin.H{"message": "room updated"})
}

// DeactivateRoom soft-deletes a room. Owner only.
func (h *Handler) DeactivateRoom(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := h.chatService.DeactivateRoom(ctx, roomID, userID); err != nil {
		h.writeServiceError(c, err, roomID, "failed to deactivate room")
		return
	}

	response.Success(c, gin.H{"message": "room deactivated"})
}

// JoinRoom adds the caller to a room.
func (h *Handler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	member, err := h.chatService.JoinRoom(ctx, roomID, userID, domain.RoleMember)
	if err != nil {
		h.writeServiceError(c, err, roomID, "failed to join room")
		return
	}

	response.Success(c, member)
}

// LeaveRoom removes the caller from a room.
func (h *Handler) LeaveRoom(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := h.chatService.LeaveRoom(ctx, roomID, userID); err != nil {
		h.writeServiceError(c, err, roomID, "failed to leave room")
		return
	}

	response.Success(c, gin.H{"message": "left room"})
}

// GetRoomMembers returns the active member ids of a room.
func (h *Handler) GetRoomMembers(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	members, err := h.chatService.GetRoomMembers(ctx, roomID, userID)
	if err != nil {
		h.writeServiceError(c, err, roomID, "failed to get room members")
		return
	}

	response.Success(c, gin.H{"members": members})
}

// MarkAsRead persists the caller's read marker for a room.
func (h *Handler) MarkAsRead(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	if err := h.chatService.MarkAsRead(ctx, roomID, userID); err != nil {
		h.writeServiceError(c, err, roomID, "failed to mark room as read")
		return
	}

	response.Success(c, gin.H{"message": "marked as read"})
}

// SendMessage appends a message to a room.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.chatService.SendMessage(ctx, roomID, userID, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidKind) {
			response.BadRequest(c, "invalid message kind")
			return
		}
		h.writeServiceError(c, err, roomID, "failed to send message")
		return
	}

	response.Created(c, msg)
}

// ListMessages returns a newest-first history page.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	userID := middleware.GetUserID(c)
	roomID := c.Param("id")

	var req domain.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var before time.Time
	if req.Before != "" {
		parsed, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			l.Warn().Err(err).Msg("invalid before cursor")
			response.BadRequest(c, "before must be RFC3339")
			return
		}
		before = parsed
	}

	messages, err := h.chatService.ListMessages(ctx, roomID, userID, before, req.Limit)
	if err != nil {
		h.writeServiceError(c, err, roomID, "failed to list messages")
		return
	}

	response.Success(c, gin.H{"messages": messages})
}

// writeServiceError maps use-case errors to HTTP responses. Unrecognised
// errors are logged and reported as internal.
func (h *Handler) writeServiceError(c *gin.Context, err error, roomID, msg string) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	case errors.Is(err, service.ErrAccessDenied):
		response.Forbidden(c, "you are not a member of this room")
	case errors.Is(err, service.ErrNotRoomOwner):
		response.Forbidden(c, "you are not the owner of this room")
	case errors.Is(err, service.ErrNotAMember):
		response.Conflict(c, "not an active member of this room")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg(msg)
		response.InternalError(c, msg)
	}
}
