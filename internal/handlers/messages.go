package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/services"
	"messaging-service/internal/userdir"
)

// MessageHandler manages message endpoints.
type MessageHandler struct {
	log    *services.MessageLog
	reads  *services.ReadTracker
	users  userdir.Directory
	logger *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(log *services.MessageLog, reads *services.ReadTracker, users userdir.Directory, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{log: log, reads: reads, users: users, logger: logger}
}

type messageResponse struct {
	models.Message
	SenderName   string `json:"sender_name,omitempty"`
	IsOwnMessage bool   `json:"is_own_message"`
}

// List returns a page of messages newest-first. Fetching the page that starts
// at the newest message advances the caller's read watermark after the page is
// produced; listing never marks anything read through any other path.
func (h *MessageHandler) List(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := callerID(c)
	pageSize := perPageQuery(c, 50, 100)
	cursor := c.Query("cursor")

	msgs, next, atNewest, err := h.log.Page(c.Request.Context(), userID, convID, cursor, pageSize)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	names := h.senderNames(c, msgs)
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{
			Message:      m,
			SenderName:   names[m.SenderID],
			IsOwnMessage: m.SenderID == userID,
		})
	}

	if atNewest {
		if err := h.reads.MarkRead(c.Request.Context(), convID, userID, time.Now().UTC()); err != nil {
			h.logger.Warn("mark read after page failed",
				zap.Int("conversation_id", convID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp, "next_cursor": next})
}

// Post appends a message to the conversation.
func (h *MessageHandler) Post(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Content     string          `json:"content" binding:"required"`
		Type        string          `json:"type"`
		ReplyToID   *int            `json:"reply_to_id"`
		Attachments json.RawMessage `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := callerID(c)
	msg, err := h.log.Append(c.Request.Context(), userID, convID, req.Type, req.Content, req.ReplyToID, req.Attachments)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, messageResponse{Message: msg, IsOwnMessage: true})
}

// Edit replaces a message's content. Sender only.
func (h *MessageHandler) Edit(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil || messageID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := callerID(c)
	msg, err := h.log.Edit(c.Request.Context(), userID, convID, messageID, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: msg, IsOwnMessage: msg.SenderID == userID})
}

// senderNames resolves display names for the page's senders. A directory
// failure degrades to empty names rather than failing the page.
func (h *MessageHandler) senderNames(c *gin.Context, msgs []models.Message) map[int]string {
	names := map[int]string{}
	if h.users == nil || len(msgs) == 0 {
		return names
	}

	seen := map[int]struct{}{}
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}

	users, err := h.users.BulkUsers(c.Request.Context(), ids)
	if err != nil {
		h.logger.Warn("sender lookup failed", zap.Int("senders", len(ids)), zap.Error(err))
		return names
	}
	for _, u := range users {
		if u.DisplayName != "" {
			names[u.ID] = u.DisplayName
		} else {
			names[u.ID] = u.Username
		}
	}
	return names
}
