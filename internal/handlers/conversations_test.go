package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/userdir"
)

type handlerFixture struct {
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
	partRepo *mocks.ParticipantRepositoryMock
	users    *mocks.UserDirectoryMock
	router   *gin.Engine
}

func newHandlerFixture() *handlerFixture {
	gin.SetMode(gin.TestMode)
	f := &handlerFixture{
		convRepo: new(mocks.ConversationRepositoryMock),
		msgRepo:  new(mocks.MessageRepositoryMock),
		partRepo: new(mocks.ParticipantRepositoryMock),
		users:    new(mocks.UserDirectoryMock),
	}

	logger := zap.NewNop()
	directory := services.NewConversationDirectory(f.convRepo, nil, logger)
	messageLog := services.NewMessageLog(f.msgRepo, directory, nil, logger)
	readTracker := services.NewReadTracker(f.partRepo, logger)
	viewBuilder := services.NewConversationViewBuilder(directory, messageLog, readTracker, f.users, logger)

	conversations := NewConversationHandler(directory, viewBuilder, readTracker, nil, logger)
	messages := NewMessageHandler(messageLog, readTracker, f.users, logger)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, 1)
		c.Next()
	})
	r.GET("/conversations", conversations.List)
	r.POST("/conversations/direct", conversations.StartDirect)
	r.POST("/conversations/group", conversations.CreateGroup)
	r.GET("/conversations/:conversation_id", conversations.Get)
	r.DELETE("/conversations/:conversation_id", conversations.Delete)
	r.POST("/conversations/:conversation_id/participants", conversations.AddParticipant)
	r.DELETE("/conversations/:conversation_id/participants/me", conversations.Leave)
	r.DELETE("/conversations/:conversation_id/participants/:user_id", conversations.RemoveParticipant)
	r.POST("/conversations/:conversation_id/read", conversations.MarkRead)
	r.PUT("/conversations/:conversation_id/mute", conversations.Mute)
	r.GET("/conversations/:conversation_id/messages", messages.List)
	r.POST("/conversations/:conversation_id/messages", messages.Post)
	r.PATCH("/conversations/:conversation_id/messages/:message_id", messages.Edit)
	f.router = r
	return f
}

func (f *handlerFixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func testGroup(id, createdBy int) models.Conversation {
	name := "team"
	return models.Conversation{ID: id, Type: models.ConversationGroup, Name: &name, IsActive: true, CreatedBy: createdBy}
}

func testDirect(id, low, high int) models.Conversation {
	return models.Conversation{ID: id, Type: models.ConversationDirect, IsActive: true, CreatedBy: low, UserLow: &low, UserHigh: &high}
}

func (f *handlerFixture) expectView(conv models.Conversation, viewerID int) {
	ids := []int{conv.ID}
	f.msgRepo.On("LatestMessages", mock.Anything, ids).Return(map[int]models.Message{}, nil).Once()
	f.partRepo.On("UnreadCounts", mock.Anything, viewerID, ids).Return(map[int]int{}, nil).Once()
	f.convRepo.On("ParticipantCounts", mock.Anything, ids).Return(map[int]int{conv.ID: 2}, nil).Once()
	if other, ok := conv.Counterpart(viewerID); ok {
		f.users.On("BulkUsers", mock.Anything, []int{other}).Return([]userdir.User{{ID: other, Username: "bob"}}, nil).Once()
	}
}

func TestListConversations(t *testing.T) {
	f := newHandlerFixture()
	conv := testGroup(5, 1)

	f.convRepo.On("ListForUser", mock.Anything, 1, 20).Return([]models.Conversation{conv}, nil).Once()
	f.convRepo.On("ListMembershipsForUser", mock.Anything, 1, []int{5}).Return([]models.Participant{
		{ConversationID: 5, UserID: 1, Role: models.RoleAdmin},
	}, nil).Once()
	f.msgRepo.On("LatestMessages", mock.Anything, []int{5}).Return(map[int]models.Message{}, nil).Once()
	f.partRepo.On("UnreadCounts", mock.Anything, 1, []int{5}).Return(map[int]int{5: 2}, nil).Once()
	f.convRepo.On("ParticipantCounts", mock.Anything, []int{5}).Return(map[int]int{5: 3}, nil).Once()

	rec := f.do(http.MethodGet, "/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []services.ConversationView `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "team", resp.Conversations[0].Name)
	assert.Equal(t, 2, resp.Conversations[0].UnreadCount)

	f.convRepo.AssertExpectations(t)
}

func TestStartDirectCreated(t *testing.T) {
	f := newHandlerFixture()
	conv := testDirect(10, 1, 2)

	f.convRepo.On("CreateDirect", mock.Anything, 1, 2).Return(conv, true, nil).Once()
	f.convRepo.On("GetConversation", mock.Anything, 10).Return(conv, nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 10, 1).Return(models.Participant{ID: 11, ConversationID: 10, UserID: 1}, nil).Once()
	f.expectView(conv, 1)

	rec := f.do(http.MethodPost, "/conversations/direct", `{"user_id":2}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Exists)
	f.convRepo.AssertExpectations(t)
}

func TestStartDirectExisting(t *testing.T) {
	f := newHandlerFixture()
	conv := testDirect(10, 1, 2)

	f.convRepo.On("CreateDirect", mock.Anything, 1, 2).Return(conv, false, nil).Once()
	f.convRepo.On("GetConversation", mock.Anything, 10).Return(conv, nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 10, 1).Return(models.Participant{ID: 11, ConversationID: 10, UserID: 1}, nil).Once()
	f.expectView(conv, 1)

	rec := f.do(http.MethodPost, "/conversations/direct", `{"user_id":2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Exists)
}

func TestStartDirectWithSelf(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodPost, "/conversations/direct", `{"user_id":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDirectMissingBody(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodPost, "/conversations/direct", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGroupSuccess(t *testing.T) {
	f := newHandlerFixture()
	conv := testGroup(5, 1)

	f.convRepo.On("CreateGroup", mock.Anything, 1, "team", "").Return(conv, nil).Once()
	f.convRepo.On("GetConversation", mock.Anything, 5).Return(conv, nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 5, 1).Return(models.Participant{ID: 19, ConversationID: 5, UserID: 1, Role: models.RoleAdmin}, nil).Once()
	f.expectView(conv, 1)

	rec := f.do(http.MethodPost, "/conversations/group", `{"name":"team"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestCreateGroupMissingName(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodPost, "/conversations/group", `{"description":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationNonMember(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(testGroup(5, 2), nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 5, 1).Return(models.Participant{}, repositories.ErrParticipantNotFound).Once()

	rec := f.do(http.MethodGet, "/conversations/5", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConversationInvalidID(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodGet, "/conversations/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddParticipantNonAdmin(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(testGroup(5, 2), nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 5, 1).Return(models.Participant{ID: 19, ConversationID: 5, UserID: 1, Role: models.RoleMember}, nil).Once()

	rec := f.do(http.MethodPost, "/conversations/5/participants", `{"user_id":3}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAddParticipantDuplicate(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(testGroup(5, 1), nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 5, 1).Return(models.Participant{ID: 19, ConversationID: 5, UserID: 1, Role: models.RoleAdmin}, nil).Once()
	f.convRepo.On("AddParticipant", mock.Anything, 5, 3, models.RoleMember).Return(models.Participant{}, repositories.ErrDuplicateParticipant).Once()

	rec := f.do(http.MethodPost, "/conversations/5/participants", `{"user_id":3}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRemoveParticipantInvalidUserID(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodDelete, "/conversations/5/participants/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaveSucceeds(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(testGroup(5, 2), nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 5, 1).Return(models.Participant{ID: 19, ConversationID: 5, UserID: 1, Role: models.RoleMember}, nil).Once()
	f.convRepo.On("RemoveParticipant", mock.Anything, 5, 1).Return(nil).Once()

	rec := f.do(http.MethodDelete, "/conversations/5/participants/me", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestDeleteNonCreator(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(testGroup(5, 2), nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 5, 1).Return(models.Participant{ID: 19, ConversationID: 5, UserID: 1, Role: models.RoleAdmin}, nil).Once()

	rec := f.do(http.MethodDelete, "/conversations/5", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMuteRequiresBody(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(http.MethodPut, "/conversations/5/mute", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMuteSucceeds(t *testing.T) {
	f := newHandlerFixture()

	f.convRepo.On("GetConversation", mock.Anything, 5).Return(testGroup(5, 1), nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, 5, 1).Return(models.Participant{ID: 19, ConversationID: 5, UserID: 1}, nil).Once()
	f.convRepo.On("SetMuted", mock.Anything, 5, 1, true).Return(nil).Once()

	rec := f.do(http.MethodPut, "/conversations/5/mute", `{"muted":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	f.convRepo.AssertExpectations(t)
}

func TestMarkReadSucceeds(t *testing.T) {
	f := newHandlerFixture()

	f.partRepo.On("AdvanceLastRead", mock.Anything, 5, 1, mock.Anything).Return(nil).Once()

	rec := f.do(http.MethodPost, "/conversations/5/read", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	f.partRepo.AssertExpectations(t)
}
