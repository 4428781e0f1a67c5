package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/services"
	"messaging-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, subjects *services.SubjectResolver, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), observability.IPFromRequest(c.Request), auditUserID(c), nil)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/subjects/:kind/:id", func(c *gin.Context) {
		if subjects == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "subject resolver not configured"})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject id"})
			return
		}
		subject := models.Subject{Kind: models.SubjectKind(c.Param("kind")), ID: id}
		entity, err := subjects.Resolve(c.Request.Context(), subject)
		if err != nil {
			respondError(c, nil, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": subject, "entity": entity})
	})
}
