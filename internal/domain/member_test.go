package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMembershipState(t *testing.T) {
	var missing *ChatMember
	assert.Equal(t, MembershipNone, missing.State())
	assert.False(t, missing.IsActive())

	active := &ChatMember{RoomID: "r1", UserID: "u1", Role: RoleMember}
	assert.Equal(t, MembershipActive, active.State())
	assert.True(t, active.IsActive())

	now := time.Now()
	left := &ChatMember{RoomID: "r1", UserID: "u1", Role: RoleMember, LeftAt: &now}
	assert.Equal(t, MembershipLeft, left.State())
	assert.False(t, left.IsActive())
}

func TestMembershipStateString(t *testing.T) {
	assert.Equal(t, "none", MembershipNone.String())
	assert.Equal(t, "active", MembershipActive.String())
	assert.Equal(t, "left", MembershipLeft.String())
}

func TestMessageKindValid(t *testing.T) {
	for _, kind := range []MessageKind{MessageKindText, MessageKindFile, MessageKindImage, MessageKindSystem} {
		assert.True(t, kind.Valid())
	}
	assert.False(t, MessageKind("VIDEO").Valid())
	assert.False(t, MessageKind("").Valid())
}

func TestSnapshotOf(t *testing.T) {
	assert.Nil(t, SnapshotOf(nil))

	msg := &ChatMessage{
		ID:        "m1",
		RoomID:    "r1",
		SenderID:  "u1",
		Body:      "hello",
		Kind:      MessageKindText,
		CreatedAt: time.Now(),
	}
	snap := SnapshotOf(msg)
	assert.Equal(t, msg.ID, snap.ID)
	assert.Equal(t, msg.SenderID, snap.SenderID)
	assert.Equal(t, msg.Body, snap.Body)
	assert.Equal(t, msg.Kind, snap.Kind)
	assert.Equal(t, msg.CreatedAt, snap.CreatedAt)
}
