package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/userdir"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateDirect(ctx context.Context, userA, userB int) (models.Conversation, bool, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Bool(1), args.Error(2)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, creatorID int, name, description string) (models.Conversation, error) {
	args := m.Called(ctx, creatorID, name, description)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, convID int) (models.Conversation, error) {
	args := m.Called(ctx, convID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) GetParticipant(ctx context.Context, convID, userID int) (models.Participant, error) {
	args := m.Called(ctx, convID, userID)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID, limit int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, limit)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *ConversationRepositoryMock) ListParticipants(ctx context.Context, convID int) ([]models.Participant, error) {
	args := m.Called(ctx, convID)
	var parts []models.Participant
	if val := args.Get(0); val != nil {
		parts = val.([]models.Participant)
	}
	return parts, args.Error(1)
}

func (m *ConversationRepositoryMock) ListMembershipsForUser(ctx context.Context, userID int, convIDs []int) ([]models.Participant, error) {
	args := m.Called(ctx, userID, convIDs)
	var parts []models.Participant
	if val := args.Get(0); val != nil {
		parts = val.([]models.Participant)
	}
	return parts, args.Error(1)
}

func (m *ConversationRepositoryMock) AddParticipant(ctx context.Context, convID, userID int, role string) (models.Participant, error) {
	args := m.Called(ctx, convID, userID, role)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ConversationRepositoryMock) RemoveParticipant(ctx context.Context, convID, userID int) error {
	args := m.Called(ctx, convID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ParticipantCounts(ctx context.Context, convIDs []int) (map[int]int, error) {
	args := m.Called(ctx, convIDs)
	var counts map[int]int
	if val := args.Get(0); val != nil {
		counts = val.(map[int]int)
	}
	return counts, args.Error(1)
}

func (m *ConversationRepositoryMock) SetMuted(ctx context.Context, convID, userID int, muted bool) error {
	args := m.Called(ctx, convID, userID, muted)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) DeleteConversation(ctx context.Context, convID int) error {
	args := m.Called(ctx, convID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, convID, senderID int, kind, content string, replyToID *int, attachments json.RawMessage) (models.Message, error) {
	args := m.Called(ctx, convID, senderID, kind, content, replyToID, attachments)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) PageBefore(ctx context.Context, convID int, before *repositories.PagePosition, limit int) ([]models.Message, error) {
	args := m.Called(ctx, convID, before, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) LatestMessages(ctx context.Context, convIDs []int) (map[int]models.Message, error) {
	args := m.Called(ctx, convIDs)
	var latest map[int]models.Message
	if val := args.Get(0); val != nil {
		latest = val.(map[int]models.Message)
	}
	return latest, args.Error(1)
}

type ParticipantRepositoryMock struct {
	mock.Mock
}

func (m *ParticipantRepositoryMock) AdvanceLastRead(ctx context.Context, convID, userID int, at time.Time) error {
	args := m.Called(ctx, convID, userID, at)
	return args.Error(0)
}

func (m *ParticipantRepositoryMock) UnreadCount(ctx context.Context, convID, userID int) (int, error) {
	args := m.Called(ctx, convID, userID)
	return args.Int(0), args.Error(1)
}

func (m *ParticipantRepositoryMock) UnreadCounts(ctx context.Context, userID int, convIDs []int) (map[int]int, error) {
	args := m.Called(ctx, userID, convIDs)
	var counts map[int]int
	if val := args.Get(0); val != nil {
		counts = val.(map[int]int)
	}
	return counts, args.Error(1)
}

type UserDirectoryMock struct {
	mock.Mock
}

func (m *UserDirectoryMock) GetUser(ctx context.Context, id int) (userdir.User, error) {
	args := m.Called(ctx, id)
	var user userdir.User
	if val := args.Get(0); val != nil {
		user = val.(userdir.User)
	}
	return user, args.Error(1)
}

func (m *UserDirectoryMock) BulkUsers(ctx context.Context, ids []int) ([]userdir.User, error) {
	args := m.Called(ctx, ids)
	var users []userdir.User
	if val := args.Get(0); val != nil {
		users = val.([]userdir.User)
	}
	return users, args.Error(1)
}

func (m *UserDirectoryMock) Search(ctx context.Context, query string, limit int) ([]userdir.User, error) {
	args := m.Called(ctx, query, limit)
	var users []userdir.User
	if val := args.Get(0); val != nil {
		users = val.([]userdir.User)
	}
	return users, args.Error(1)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ParticipantRepository = (*ParticipantRepositoryMock)(nil)
var _ userdir.Directory = (*UserDirectoryMock)(nil)
