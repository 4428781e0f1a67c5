package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/userdir"
)

type viewBuilderFixture struct {
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
	partRepo *mocks.ParticipantRepositoryMock
	users    *mocks.UserDirectoryMock
	builder  *ConversationViewBuilder
}

func newViewBuilderFixture() *viewBuilderFixture {
	f := &viewBuilderFixture{
		convRepo: new(mocks.ConversationRepositoryMock),
		msgRepo:  new(mocks.MessageRepositoryMock),
		partRepo: new(mocks.ParticipantRepositoryMock),
		users:    new(mocks.UserDirectoryMock),
	}
	logger := zap.NewNop()
	directory := NewConversationDirectory(f.convRepo, nil, logger)
	messages := NewMessageLog(f.msgRepo, directory, nil, logger)
	reads := NewReadTracker(f.partRepo, logger)
	f.builder = NewConversationViewBuilder(directory, messages, reads, f.users, logger)
	return f
}

func TestBuildDirectView(t *testing.T) {
	f := newViewBuilderFixture()
	conv := directConversation(10, 1, 2)
	now := time.Now().UTC()

	f.msgRepo.On("LatestMessages", mock.Anything, []int{10}).Return(map[int]models.Message{
		10: {ID: 100, ConversationID: 10, SenderID: 2, Type: models.MessageText, Content: "hey", CreatedAt: now},
	}, nil).Once()
	f.partRepo.On("UnreadCounts", mock.Anything, 1, []int{10}).Return(map[int]int{10: 4}, nil).Once()
	f.convRepo.On("ParticipantCounts", mock.Anything, []int{10}).Return(map[int]int{10: 2}, nil).Once()
	f.users.On("BulkUsers", mock.Anything, []int{2}).Return([]userdir.User{
		{ID: 2, Username: "bob", DisplayName: "Bob", Avatar: "b.png"},
	}, nil).Once()

	view, err := f.builder.Build(context.Background(), conv, models.Participant{ConversationID: 10, UserID: 1, IsMuted: true}, 1)
	require.NoError(t, err)

	assert.Equal(t, "Bob", view.Name)
	assert.Equal(t, "b.png", view.Avatar)
	assert.Equal(t, 4, view.UnreadCount)
	assert.Equal(t, 2, view.ParticipantCount)
	assert.True(t, view.IsMuted)
	require.NotNil(t, view.LastMessage)
	assert.Equal(t, "Bob", view.LastMessage.SenderName)
	assert.Equal(t, "hey", view.LastMessage.Content)
}

func TestBuildGroupViewUsesGroupFields(t *testing.T) {
	f := newViewBuilderFixture()
	conv := groupConversation(5, 1)
	desc := "weekly sync"
	conv.Description = &desc

	f.msgRepo.On("LatestMessages", mock.Anything, []int{5}).Return(map[int]models.Message{}, nil).Once()
	f.partRepo.On("UnreadCounts", mock.Anything, 1, []int{5}).Return(map[int]int{}, nil).Once()
	f.convRepo.On("ParticipantCounts", mock.Anything, []int{5}).Return(map[int]int{5: 7}, nil).Once()

	view, err := f.builder.Build(context.Background(), conv, models.Participant{ConversationID: 5, UserID: 1}, 1)
	require.NoError(t, err)

	assert.Equal(t, "team", view.Name)
	assert.Equal(t, "weekly sync", view.Description)
	assert.Equal(t, 7, view.ParticipantCount)
	assert.Nil(t, view.LastMessage)
	f.users.AssertNotCalled(t, "BulkUsers", mock.Anything, mock.Anything)
}

func TestBuildDirectoryFailureDegradesToPlaceholder(t *testing.T) {
	f := newViewBuilderFixture()
	conv := directConversation(10, 1, 2)

	f.msgRepo.On("LatestMessages", mock.Anything, []int{10}).Return(map[int]models.Message{
		10: {ID: 100, ConversationID: 10, SenderID: 2, Content: "hey"},
	}, nil).Once()
	f.partRepo.On("UnreadCounts", mock.Anything, 1, []int{10}).Return(map[int]int{}, nil).Once()
	f.convRepo.On("ParticipantCounts", mock.Anything, []int{10}).Return(map[int]int{10: 2}, nil).Once()
	f.users.On("BulkUsers", mock.Anything, []int{2}).Return(([]userdir.User)(nil), assert.AnError).Once()

	view, err := f.builder.Build(context.Background(), conv, models.Participant{ConversationID: 10, UserID: 1}, 1)
	require.NoError(t, err)

	assert.Equal(t, placeholderName, view.Name)
	require.NotNil(t, view.LastMessage)
	assert.Equal(t, placeholderName, view.LastMessage.SenderName)
}

func TestBuildListBatchesLookups(t *testing.T) {
	f := newViewBuilderFixture()
	convs := []models.Conversation{directConversation(10, 1, 2), groupConversation(5, 1)}

	f.convRepo.On("ListMembershipsForUser", mock.Anything, 1, []int{10, 5}).Return([]models.Participant{
		{ConversationID: 10, UserID: 1, IsMuted: true},
		{ConversationID: 5, UserID: 1},
	}, nil).Once()
	f.msgRepo.On("LatestMessages", mock.Anything, []int{10, 5}).Return(map[int]models.Message{
		5: {ID: 200, ConversationID: 5, SenderID: 3, Content: "minutes"},
	}, nil).Once()
	f.partRepo.On("UnreadCounts", mock.Anything, 1, []int{10, 5}).Return(map[int]int{5: 1}, nil).Once()
	f.convRepo.On("ParticipantCounts", mock.Anything, []int{10, 5}).Return(map[int]int{10: 2, 5: 7}, nil).Once()
	f.users.On("BulkUsers", mock.Anything, mock.MatchedBy(func(ids []int) bool {
		return len(ids) == 2
	})).Return([]userdir.User{{ID: 2, Username: "bob"}, {ID: 3, Username: "carol"}}, nil).Once()

	views, err := f.builder.BuildList(context.Background(), 1, convs)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "bob", views[0].Name)
	assert.True(t, views[0].IsMuted)
	assert.Equal(t, "team", views[1].Name)
	assert.Equal(t, 1, views[1].UnreadCount)
	require.NotNil(t, views[1].LastMessage)
	assert.Equal(t, "carol", views[1].LastMessage.SenderName)
}

func TestPreviewTruncation(t *testing.T) {
	f := newViewBuilderFixture()
	conv := groupConversation(5, 1)
	long := strings.Repeat("ü", previewLength+20)

	f.msgRepo.On("LatestMessages", mock.Anything, []int{5}).Return(map[int]models.Message{
		5: {ID: 200, ConversationID: 5, SenderID: 3, Content: long},
	}, nil).Once()
	f.partRepo.On("UnreadCounts", mock.Anything, 1, []int{5}).Return(map[int]int{}, nil).Once()
	f.convRepo.On("ParticipantCounts", mock.Anything, []int{5}).Return(map[int]int{5: 7}, nil).Once()
	f.users.On("BulkUsers", mock.Anything, []int{3}).Return([]userdir.User{{ID: 3, Username: "carol"}}, nil).Once()

	view, err := f.builder.Build(context.Background(), conv, models.Participant{ConversationID: 5, UserID: 1}, 1)
	require.NoError(t, err)

	require.NotNil(t, view.LastMessage)
	runes := []rune(view.LastMessage.Content)
	assert.Len(t, runes, previewLength+1)
	assert.Equal(t, '…', runes[len(runes)-1])
}
