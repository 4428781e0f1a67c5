package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/middleware"
)

func callerID(c *gin.Context) int {
	return c.GetInt(middleware.UserIDKey)
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func auditUserID(c *gin.Context) *int {
	if id := callerID(c); id != 0 {
		return &id
	}
	return nil
}

func conversationIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}

func perPageQuery(c *gin.Context, fallback, max int) int {
	raw := c.Query("per_page")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
