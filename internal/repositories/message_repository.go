package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, conversation_id, sender_id, reply_to_id, type, content, attachments, is_edited, edited_at, created_at`

// MessageRepository defines message persistence.
type MessageRepository interface {
	Append(ctx context.Context, convID, senderID int, kind, content string, replyToID *int, attachments json.RawMessage) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error)
	PageBefore(ctx context.Context, convID int, before *PagePosition, limit int) ([]models.Message, error)
	LatestMessages(ctx context.Context, convIDs []int) (map[int]models.Message, error)
}

// PagePosition is the keyset cursor position for message pagination.
type PagePosition struct {
	CreatedAt time.Time
	ID        int
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append inserts a message and bumps the conversation's last_message_at in a
// single transaction, so a reader never observes one without the other. The
// bump uses GREATEST so last_message_at stays non-decreasing even when
// concurrent appends commit out of insertion order.
func (r *MessageRepo) Append(ctx context.Context, convID, senderID int, kind, content string, replyToID *int, attachments json.RawMessage) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var att []byte
	if len(attachments) > 0 {
		att = attachments
	}

	var msg models.Message
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, reply_to_id, type, content, attachments)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+messageColumns,
		convID, senderID, replyToID, kind, content, att).StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations
         SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2), updated_at = NOW()
         WHERE id = $1`, convID, msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateContent edits a message's content and marks it edited.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content = $2, is_edited = TRUE, edited_at = NOW()
         WHERE id = $1
         RETURNING `+messageColumns, messageID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// PageBefore returns up to limit messages of the conversation newest-first,
// strictly older than the cursor position when one is given. The (created_at,
// id) keyset keeps pages stable while new messages are being appended.
func (r *MessageRepo) PageBefore(ctx context.Context, convID int, before *PagePosition, limit int) ([]models.Message, error) {
	var msgs []models.Message
	var err error
	if before == nil {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE conversation_id = $1
             ORDER BY created_at DESC, id DESC
             LIMIT $2`, convID, limit)
	} else {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE conversation_id = $1 AND (created_at, id) < ($2, $3)
             ORDER BY created_at DESC, id DESC
             LIMIT $4`, convID, before.CreatedAt, before.ID, limit)
	}
	return msgs, err
}

// LatestMessages returns the newest message per conversation.
func (r *MessageRepo) LatestMessages(ctx context.Context, convIDs []int) (map[int]models.Message, error) {
	latest := make(map[int]models.Message, len(convIDs))
	if len(convIDs) == 0 {
		return latest, nil
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT DISTINCT ON (conversation_id) `+messageColumns+`
         FROM messages
         WHERE conversation_id = ANY($1)
         ORDER BY conversation_id, created_at DESC, id DESC`, pq.Array(convIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var msg models.Message
		if err := rows.StructScan(&msg); err != nil {
			return nil, err
		}
		latest[msg.ConversationID] = msg
	}
	return latest, rows.Err()
}
