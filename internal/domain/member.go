package domain

import "time"

// MemberRole represents a member's role within a room.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleMember MemberRole = "member"
)

// MembershipState is the explicit membership state for a (room, user) pair.
// The state machine:
//
//	None   -> Active  (join: insert row)
//	Left   -> Active  (rejoin: clear left_at)
//	Active -> Active  (join again: no-op)
//	Active -> Left    (leave: set left_at)
//
// Leaving from None or Left is an invalid transition.
type MembershipState int

const (
	MembershipNone MembershipState = iota
	MembershipActive
	MembershipLeft
)

func (s MembershipState) String() string {
	switch s {
	case MembershipActive:
		return "active"
	case MembershipLeft:
		return "left"
	default:
		return "none"
	}
}

// ChatMember is the membership row for a (room, user) pair. There is at most one
// row per pair for the lifetime of the room: rejoin reuses the row.
type ChatMember struct {
	RoomID     string     `json:"room_id"`
	UserID     string     `json:"user_id"`
	Role       MemberRole `json:"role"`
	JoinedAt   time.Time  `json:"joined_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
}

// State derives the membership state. A nil receiver means no row exists.
func (m *ChatMember) State() MembershipState {
	switch {
	case m == nil:
		return MembershipNone
	case m.LeftAt == nil:
		return MembershipActive
	default:
		return MembershipLeft
	}
}

// IsActive reports whether the member currently belongs to the room.
func (m *ChatMember) IsActive() bool {
	return m.State() == MembershipActive
}
