package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/observability"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

// ConversationHandler manages conversation and membership endpoints.
type ConversationHandler struct {
	directory *services.ConversationDirectory
	views     *services.ConversationViewBuilder
	reads     *services.ReadTracker
	audit     *telemetry.AuditEmitter
	logger    *zap.Logger
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(directory *services.ConversationDirectory, views *services.ConversationViewBuilder, reads *services.ReadTracker, audit *telemetry.AuditEmitter, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		directory: directory,
		views:     views,
		reads:     reads,
		audit:     audit,
		logger:    logger,
	}
}

// List returns the caller's conversations, most recent activity first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := callerID(c)
	limit := perPageQuery(c, 20, 100)

	convs, err := h.directory.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	views, err := h.views.BuildList(c.Request.Context(), userID, convs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

// StartDirect creates or returns the direct conversation with another user.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := callerID(c)
	conv, created, err := h.directory.StartDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	_, part, err := h.directory.Membership(c.Request.Context(), conv.ID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	view, err := h.views.Build(c.Request.Context(), conv, part, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.emitAudit(c, "INFO", "direct conversation created")
	}
	c.JSON(status, gin.H{"conversation": view, "exists": !created})
}

// CreateGroup creates a group conversation with the caller as admin.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := callerID(c)
	conv, err := h.directory.CreateGroup(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	_, part, err := h.directory.Membership(c.Request.Context(), conv.ID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	view, err := h.views.Build(c.Request.Context(), conv, part, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.emitAudit(c, "INFO", "group conversation created")
	c.JSON(http.StatusCreated, gin.H{"conversation": view})
}

// Get returns the caller's view of a single conversation.
func (h *ConversationHandler) Get(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := callerID(c)
	conv, part, err := h.directory.Membership(c.Request.Context(), convID, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	view, err := h.views.Build(c.Request.Context(), conv, part, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

// AddParticipant invites a user into a group conversation.
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		UserID int    `json:"user_id" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	part, err := h.directory.AddParticipant(c.Request.Context(), callerID(c), convID, req.UserID, req.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.emitAudit(c, "INFO", "participant added")
	c.JSON(http.StatusCreated, gin.H{"participant": part})
}

// RemoveParticipant removes a user from a group conversation.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || targetID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.directory.RemoveParticipant(c.Request.Context(), callerID(c), convID, targetID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.emitAudit(c, "INFO", "participant removed")
	c.Status(http.StatusNoContent)
}

// Leave removes the caller from a group conversation.
func (h *ConversationHandler) Leave(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	if err := h.directory.Leave(c.Request.Context(), callerID(c), convID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes a conversation and everything it owns. Creator only.
func (h *ConversationHandler) Delete(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	if err := h.directory.Delete(c.Request.Context(), callerID(c), convID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.emitAudit(c, "INFO", "conversation deleted")
	c.Status(http.StatusNoContent)
}

// Mute toggles the caller's mute flag for a conversation.
func (h *ConversationHandler) Mute(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Muted *bool `json:"muted" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.directory.SetMuted(c.Request.Context(), callerID(c), convID, *req.Muted); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkRead explicitly advances the caller's read watermark to now.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	convID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	if err := h.reads.MarkRead(c.Request.Context(), convID, callerID(c), time.Now().UTC()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConversationHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), observability.IPFromRequest(c.Request), auditUserID(c), nil)
}
