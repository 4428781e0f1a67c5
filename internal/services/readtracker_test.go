package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/mocks"
	"messaging-service/internal/repositories"
)

func TestMarkReadDefaultsToNow(t *testing.T) {
	repo := new(mocks.ParticipantRepositoryMock)
	tracker := NewReadTracker(repo, zap.NewNop())

	before := time.Now().UTC()
	repo.On("AdvanceLastRead", mock.Anything, 5, 2, mock.MatchedBy(func(at time.Time) bool {
		return !at.Before(before) && !at.After(time.Now().UTC())
	})).Return(nil).Once()

	require.NoError(t, tracker.MarkRead(context.Background(), 5, 2, time.Time{}))
	repo.AssertExpectations(t)
}

func TestMarkReadPassesTimestamp(t *testing.T) {
	repo := new(mocks.ParticipantRepositoryMock)
	tracker := NewReadTracker(repo, zap.NewNop())

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	repo.On("AdvanceLastRead", mock.Anything, 5, 2, at).Return(nil).Once()

	require.NoError(t, tracker.MarkRead(context.Background(), 5, 2, at))
	repo.AssertExpectations(t)
}

func TestMarkReadUnknownParticipant(t *testing.T) {
	repo := new(mocks.ParticipantRepositoryMock)
	tracker := NewReadTracker(repo, zap.NewNop())

	repo.On("AdvanceLastRead", mock.Anything, 5, 9, mock.Anything).Return(repositories.ErrParticipantNotFound).Once()

	err := tracker.MarkRead(context.Background(), 5, 9, time.Now().UTC())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestUnreadCount(t *testing.T) {
	repo := new(mocks.ParticipantRepositoryMock)
	tracker := NewReadTracker(repo, zap.NewNop())

	repo.On("UnreadCount", mock.Anything, 5, 2).Return(3, nil).Once()

	count, err := tracker.UnreadCount(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUnreadCountsBulk(t *testing.T) {
	repo := new(mocks.ParticipantRepositoryMock)
	tracker := NewReadTracker(repo, zap.NewNop())

	repo.On("UnreadCounts", mock.Anything, 2, []int{5, 10}).Return(map[int]int{5: 3, 10: 0}, nil).Once()

	counts, err := tracker.UnreadCounts(context.Background(), 2, []int{5, 10})
	require.NoError(t, err)
	assert.Equal(t, 3, counts[5])
	assert.Equal(t, 0, counts[10])
}

func TestUnreadCountStorageError(t *testing.T) {
	repo := new(mocks.ParticipantRepositoryMock)
	tracker := NewReadTracker(repo, zap.NewNop())

	repo.On("UnreadCount", mock.Anything, 5, 2).Return(0, assert.AnError).Once()

	_, err := tracker.UnreadCount(context.Background(), 5, 2)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}
