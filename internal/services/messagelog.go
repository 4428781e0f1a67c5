package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

const maxContentLength = 10000

// MessageLog appends, edits and pages conversation messages. Membership is
// checked through the conversation directory before any mutation.
type MessageLog struct {
	messages  repositories.MessageRepository
	directory *ConversationDirectory
	events    EventPublisher
	logger    *zap.Logger
}

// NewMessageLog constructs a MessageLog.
func NewMessageLog(messages repositories.MessageRepository, directory *ConversationDirectory, events EventPublisher, logger *zap.Logger) *MessageLog {
	return &MessageLog{messages: messages, directory: directory, events: events, logger: logger}
}

// Append stores a message. The insert and the conversation's last_message_at
// bump commit as one transaction. A sender without an active participant row
// is rejected with PermissionDenied; validation happens before any mutation.
func (l *MessageLog) Append(ctx context.Context, callerID, convID int, kind, content string, replyToID *int, attachments json.RawMessage) (models.Message, error) {
	conv, err := l.directory.Conversation(ctx, convID)
	if err != nil {
		return models.Message{}, err
	}

	member, err := l.directory.IsMember(ctx, convID, callerID)
	if err != nil {
		return models.Message{}, err
	}
	if !member {
		return models.Message{}, apperrors.PermissionDenied("not a participant of this conversation")
	}

	if kind == "" {
		kind = models.MessageText
	}
	if !models.ValidMessageType(kind) {
		return models.Message{}, apperrors.Invalid("unknown message type")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperrors.Invalid("content is required")
	}
	if len(content) > maxContentLength {
		return models.Message{}, apperrors.Invalid("content is too long")
	}
	if len(attachments) > 0 && !json.Valid(attachments) {
		return models.Message{}, apperrors.Invalid("attachments must be valid JSON")
	}

	if replyToID != nil {
		target, err := l.messages.GetMessage(ctx, *replyToID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return models.Message{}, apperrors.NotFound("reply target not found")
			}
			return models.Message{}, apperrors.Internal(err)
		}
		if target.ConversationID != convID {
			return models.Message{}, apperrors.Invalid("reply target belongs to another conversation")
		}
	}

	msg, err := l.messages.Append(ctx, convID, callerID, kind, content, replyToID, attachments)
	if err != nil {
		return models.Message{}, apperrors.Internal(err)
	}

	observability.IncMessageAppended(conv.Type)
	publishEvent(ctx, l.logger, l.events, EventMessageCreated,
		models.Subject{Kind: models.SubjectMessage, ID: msg.ID}, callerID,
		map[string]int{"conversation_id": convID})
	return msg, nil
}

// Edit replaces a message's content. Only the original sender may edit.
func (l *MessageLog) Edit(ctx context.Context, callerID, convID, messageID int, content string) (models.Message, error) {
	if _, err := l.directory.Conversation(ctx, convID); err != nil {
		return models.Message{}, err
	}

	msg, err := l.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, apperrors.NotFound("message not found")
		}
		return models.Message{}, apperrors.Internal(err)
	}
	if msg.ConversationID != convID {
		return models.Message{}, apperrors.NotFound("message not found")
	}
	if msg.SenderID != callerID {
		return models.Message{}, apperrors.PermissionDenied("only the sender can edit a message")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperrors.Invalid("content is required")
	}
	if len(content) > maxContentLength {
		return models.Message{}, apperrors.Invalid("content is too long")
	}

	updated, err := l.messages.UpdateContent(ctx, messageID, content)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, apperrors.NotFound("message not found")
		}
		return models.Message{}, apperrors.Internal(err)
	}
	return updated, nil
}

// Page returns messages newest-first from the opaque cursor position, plus the
// cursor of the next (older) page, empty when this page was the last. The
// second return value reports whether the page starts at the newest message,
// which is what lets a page fetch advance the read watermark.
func (l *MessageLog) Page(ctx context.Context, callerID, convID int, cursor string, pageSize int) ([]models.Message, string, bool, error) {
	if _, _, err := l.directory.Membership(ctx, convID, callerID); err != nil {
		return nil, "", false, err
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	pos, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", false, apperrors.Invalid("malformed cursor")
	}

	msgs, err := l.messages.PageBefore(ctx, convID, pos, pageSize)
	if err != nil {
		return nil, "", false, apperrors.Internal(err)
	}

	next := ""
	if len(msgs) == pageSize {
		last := msgs[len(msgs)-1]
		next = encodeCursor(repositories.PagePosition{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return msgs, next, pos == nil, nil
}

// Latest returns the newest message per conversation, for list previews.
func (l *MessageLog) Latest(ctx context.Context, convIDs []int) (map[int]models.Message, error) {
	latest, err := l.messages.LatestMessages(ctx, convIDs)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return latest, nil
}

const (
	defaultPageSize = 50
	maxPageSize     = 100
)
