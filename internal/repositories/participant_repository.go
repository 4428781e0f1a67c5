package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ParticipantRepository is the read-tracking write path. It touches only the
// last_read_at column; membership rows themselves belong to the conversation
// repository.
type ParticipantRepository interface {
	AdvanceLastRead(ctx context.Context, convID, userID int, at time.Time) error
	UnreadCount(ctx context.Context, convID, userID int) (int, error)
	UnreadCounts(ctx context.Context, userID int, convIDs []int) (map[int]int, error)
}

// ParticipantRepo is a sqlx implementation of ParticipantRepository.
type ParticipantRepo struct {
	db *sqlx.DB
}

// NewParticipantRepo constructs a ParticipantRepo.
func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// AdvanceLastRead moves the read watermark forward. GREATEST makes the update
// a no-op for stale or out-of-order timestamps, so the watermark never
// regresses.
func (r *ParticipantRepo) AdvanceLastRead(ctx context.Context, convID, userID int, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversation_participants
         SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), $3)
         WHERE conversation_id = $1 AND user_id = $2`, convID, userID, at)
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

// UnreadCount counts messages newer than the user's watermark, excluding the
// user's own messages.
func (r *ParticipantRepo) UnreadCount(ctx context.Context, convID, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
         FROM messages m
         INNER JOIN conversation_participants p
             ON p.conversation_id = m.conversation_id AND p.user_id = $2
         WHERE m.conversation_id = $1
           AND m.sender_id <> $2
           AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)`, convID, userID)
	return count, err
}

// UnreadCounts is the bulk variant used by list views. Conversations with no
// unread messages are absent from the result.
func (r *ParticipantRepo) UnreadCounts(ctx context.Context, userID int, convIDs []int) (map[int]int, error) {
	counts := make(map[int]int, len(convIDs))
	if len(convIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT m.conversation_id, COUNT(*)
         FROM messages m
         INNER JOIN conversation_participants p
             ON p.conversation_id = m.conversation_id AND p.user_id = $1
         WHERE m.conversation_id = ANY($2)
           AND m.sender_id <> $1
           AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)
         GROUP BY m.conversation_id`, userID, pq.Array(convIDs))
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
