package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrDuplicateParticipant = errors.New("participant already exists")
)

const conversationColumns = `id, type, name, description, avatar, is_active, created_by, user_low, user_high, last_message_at, created_at, updated_at`

// ConversationRepository abstracts conversation and membership persistence.
type ConversationRepository interface {
	CreateDirect(ctx context.Context, userA, userB int) (models.Conversation, bool, error)
	CreateGroup(ctx context.Context, creatorID int, name, description string) (models.Conversation, error)
	GetConversation(ctx context.Context, convID int) (models.Conversation, error)
	GetParticipant(ctx context.Context, convID, userID int) (models.Participant, error)
	ListForUser(ctx context.Context, userID, limit int) ([]models.Conversation, error)
	ListParticipants(ctx context.Context, convID int) ([]models.Participant, error)
	ListMembershipsForUser(ctx context.Context, userID int, convIDs []int) ([]models.Participant, error)
	AddParticipant(ctx context.Context, convID, userID int, role string) (models.Participant, error)
	RemoveParticipant(ctx context.Context, convID, userID int) error
	ParticipantCounts(ctx context.Context, convIDs []int) (map[int]int, error)
	SetMuted(ctx context.Context, convID, userID int, muted bool) error
	DeleteConversation(ctx context.Context, convID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateDirect returns the active direct conversation for the pair, creating
// it together with its two participant rows when none exists. The boolean is
// true when a new conversation was created. Concurrent calls for the same pair
// converge on one row: the insert races on the partial unique index over the
// canonicalized pair and the loser fetches the winner's conversation.
func (r *ConversationRepo) CreateDirect(ctx context.Context, userA, userB int) (models.Conversation, bool, error) {
	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	conv, err := r.getDirectByPair(ctx, low, high)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, err
	}

	conv, err = r.insertDirect(ctx, userA, low, high)
	if err == nil {
		return conv, true, nil
	}
	if !isUniqueViolation(err) {
		return models.Conversation{}, false, err
	}

	// Lost the race: another worker committed the pair first.
	conv, err = r.getDirectByPair(ctx, low, high)
	if err != nil {
		return models.Conversation{}, false, err
	}
	return conv, false, nil
}

func (r *ConversationRepo) getDirectByPair(ctx context.Context, low, high int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations
         WHERE type = 'direct' AND is_active AND user_low = $1 AND user_high = $2`, low, high)
	return conv, err
}

func (r *ConversationRepo) insertDirect(ctx context.Context, creatorID, low, high int) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (type, created_by, user_low, user_high)
         VALUES ('direct', $1, $2, $3)
         RETURNING `+conversationColumns, creatorID, low, high).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range []int{low, high} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, role)
             VALUES ($1, $2, 'member')`, conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// CreateGroup creates a group conversation and its creator's admin participant
// row atomically.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int, name, description string) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (type, name, description, created_by)
         VALUES ('group', $1, NULLIF($2, ''), $3)
         RETURNING `+conversationColumns, name, description, creatorID).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, role)
         VALUES ($1, $2, 'admin')`, conv.ID, creatorID); err != nil {
		return models.Conversation{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, convID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, convID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// GetParticipant fetches a membership row.
func (r *ConversationRepo) GetParticipant(ctx context.Context, convID, userID int) (models.Participant, error) {
	var p models.Participant
	err := r.db.GetContext(ctx, &p,
		`SELECT id, conversation_id, user_id, role, joined_at, last_read_at, is_muted
         FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`, convID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrParticipantNotFound
	}
	return p, err
}

// ListForUser returns active conversations the user belongs to, most recent
// activity first. created_at breaks ties and orders conversations that have no
// messages yet, keeping pagination stable.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID, limit int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT c.id, c.type, c.name, c.description, c.avatar, c.is_active, c.created_by,
                c.user_low, c.user_high, c.last_message_at, c.created_at, c.updated_at
         FROM conversations c
         INNER JOIN conversation_participants p ON p.conversation_id = c.id
         WHERE p.user_id = $1 AND c.is_active
         ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
         LIMIT $2`, userID, limit)
	return convs, err
}

// ListParticipants returns all membership rows of a conversation.
func (r *ConversationRepo) ListParticipants(ctx context.Context, convID int) ([]models.Participant, error) {
	var parts []models.Participant
	err := r.db.SelectContext(ctx, &parts,
		`SELECT id, conversation_id, user_id, role, joined_at, last_read_at, is_muted
         FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at, id`, convID)
	return parts, err
}

// ListMembershipsForUser returns the user's membership rows for the given
// conversations.
func (r *ConversationRepo) ListMembershipsForUser(ctx context.Context, userID int, convIDs []int) ([]models.Participant, error) {
	if len(convIDs) == 0 {
		return nil, nil
	}
	var parts []models.Participant
	err := r.db.SelectContext(ctx, &parts,
		`SELECT id, conversation_id, user_id, role, joined_at, last_read_at, is_muted
         FROM conversation_participants
         WHERE user_id = $1 AND conversation_id = ANY($2)`, userID, pq.Array(convIDs))
	return parts, err
}

// AddParticipant inserts a membership row. Duplicate (conversation, user)
// pairs surface as ErrDuplicateParticipant.
func (r *ConversationRepo) AddParticipant(ctx context.Context, convID, userID int, role string) (models.Participant, error) {
	var p models.Participant
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, role)
         VALUES ($1, $2, $3)
         RETURNING id, conversation_id, user_id, role, joined_at, last_read_at, is_muted`,
		convID, userID, role).StructScan(&p)
	if isUniqueViolation(err) {
		return models.Participant{}, ErrDuplicateParticipant
	}
	return p, err
}

// RemoveParticipant deletes a membership row.
func (r *ConversationRepo) RemoveParticipant(ctx context.Context, convID, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`, convID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// ParticipantCounts returns the member count per conversation.
func (r *ConversationRepo) ParticipantCounts(ctx context.Context, convIDs []int) (map[int]int, error) {
	counts := make(map[int]int, len(convIDs))
	if len(convIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT conversation_id, COUNT(*) FROM conversation_participants
         WHERE conversation_id = ANY($1) GROUP BY conversation_id`, pq.Array(convIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var convID, count int
		if err := rows.Scan(&convID, &count); err != nil {
			return nil, err
		}
		counts[convID] = count
	}
	return counts, rows.Err()
}

// SetMuted updates a participant's mute flag.
func (r *ConversationRepo) SetMuted(ctx context.Context, convID, userID int, muted bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversation_participants SET is_muted = $3
         WHERE conversation_id = $1 AND user_id = $2`, convID, userID, muted)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// DeleteConversation removes a conversation; participants and messages go with
// it through the cascade.
func (r *ConversationRepo) DeleteConversation(ctx context.Context, convID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, convID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
