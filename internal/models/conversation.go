package models

import "time"

// Conversation types.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Conversation is a direct or group conversation. For direct conversations
// UserLow/UserHigh hold the canonicalized participant pair (low < high); a
// partial unique index on that pair guarantees at most one active direct
// conversation per pair of users. Both columns are NULL for groups.
type Conversation struct {
	ID            int        `db:"id" json:"id"`
	Type          string     `db:"type" json:"type"`
	Name          *string    `db:"name" json:"name,omitempty"`
	Description   *string    `db:"description" json:"description,omitempty"`
	Avatar        *string    `db:"avatar" json:"avatar,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedBy     int        `db:"created_by" json:"created_by"`
	UserLow       *int       `db:"user_low" json:"-"`
	UserHigh      *int       `db:"user_high" json:"-"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsDirect reports whether the conversation is a one-to-one conversation.
func (c Conversation) IsDirect() bool {
	return c.Type == ConversationDirect
}

// Counterpart returns the other user of a direct conversation. The second
// return value is false for groups or when the viewer is not part of the pair.
func (c Conversation) Counterpart(viewerID int) (int, bool) {
	if !c.IsDirect() || c.UserLow == nil || c.UserHigh == nil {
		return 0, false
	}
	switch viewerID {
	case *c.UserLow:
		return *c.UserHigh, true
	case *c.UserHigh:
		return *c.UserLow, true
	}
	return 0, false
}
