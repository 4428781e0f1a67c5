package models

import "time"

// Participant roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Participant links a user to a conversation. LastReadAt is the user's read
// watermark; it only ever advances.
type Participant struct {
	ID             int        `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	UserID         int        `db:"user_id" json:"user_id"`
	Role           string     `db:"role" json:"role"`
	JoinedAt       time.Time  `db:"joined_at" json:"joined_at"`
	LastReadAt     *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
	IsMuted        bool       `db:"is_muted" json:"is_muted"`
}

// ValidRole reports whether role is a known participant role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}
