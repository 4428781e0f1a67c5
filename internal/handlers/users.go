package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/userdir"
)

// UserHandler proxies user-directory lookups used to pick a conversation
// target. Not part of the core state machine.
type UserHandler struct {
	users  userdir.Directory
	logger *zap.Logger
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users userdir.Directory, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Search looks up users by name.
func (h *UserHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	limit := perPageQuery(c, 20, 50)
	users, err := h.users.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.logger.Warn("user search failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to search users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
