package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/repositories"
)

// ReadTracker maintains per-participant read watermarks and derives unread
// counts from them. It is the only writer of last_read_at.
type ReadTracker struct {
	participants repositories.ParticipantRepository
	logger       *zap.Logger
}

// NewReadTracker constructs a ReadTracker.
func NewReadTracker(participants repositories.ParticipantRepository, logger *zap.Logger) *ReadTracker {
	return &ReadTracker{participants: participants, logger: logger}
}

// MarkRead advances the user's watermark to at, defaulting to now. Stale
// timestamps are absorbed: the watermark never regresses.
func (t *ReadTracker) MarkRead(ctx context.Context, convID, userID int, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := t.participants.AdvanceLastRead(ctx, convID, userID, at)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return apperrors.NotFound("conversation not found")
		}
		return apperrors.Internal(err)
	}
	return nil
}

// UnreadCount reports how many messages from other senders sit above the
// user's watermark.
func (t *ReadTracker) UnreadCount(ctx context.Context, convID, userID int) (int, error) {
	count, err := t.participants.UnreadCount(ctx, convID, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return count, nil
}

// UnreadCounts is the bulk variant used by list views.
func (t *ReadTracker) UnreadCounts(ctx context.Context, userID int, convIDs []int) (map[int]int, error) {
	counts, err := t.participants.UnreadCounts(ctx, userID, convIDs)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return counts, nil
}
