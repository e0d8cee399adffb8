package audit

import (
	"context"

	"github.com/SparklePenguin/podpod-chat-service/pkg/log"
)

// Audit actions for the chat service.
const (
	ActionCreateRoom     = "chat.room.create"
	ActionUpdateRoom     = "chat.room.update"
	ActionDeactivateRoom = "chat.room.deactivate"
	ActionJoinRoom       = "chat.member.join"
	ActionLeaveRoom      = "chat.member.leave"
	ActionMarkRead       = "chat.member.mark_read"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, roomID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldRoomID, roomID).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action, userID, roomID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(log.FieldRoomID, roomID).
		Str(FieldDetail, detail).
		Msg(msg)
}
