package models

import (
	"encoding/json"
	"time"
)

// Message kinds.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageFile   = "file"
	MessageSystem = "system"
)

// Message is a single conversation message. Messages are immutable except for
// Content/IsEdited/EditedAt on edit; they are never reordered or renumbered.
type Message struct {
	ID             int             `db:"id" json:"id"`
	ConversationID int             `db:"conversation_id" json:"conversation_id"`
	SenderID       int             `db:"sender_id" json:"sender_id"`
	ReplyToID      *int            `db:"reply_to_id" json:"reply_to_id,omitempty"`
	Type           string          `db:"type" json:"type"`
	Content        string          `db:"content" json:"content"`
	Attachments    json.RawMessage `db:"attachments" json:"attachments,omitempty"`
	IsEdited       bool            `db:"is_edited" json:"is_edited"`
	EditedAt       *time.Time      `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ValidMessageType reports whether kind is a known message kind.
func ValidMessageType(kind string) bool {
	switch kind {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}
