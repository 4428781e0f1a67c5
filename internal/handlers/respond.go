package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/apperrors"
)

func statusFromKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.KindPermissionDenied:
		return http.StatusForbidden
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindInvalid:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError maps a core error onto its HTTP status. Internal causes are
// logged and never echoed to the caller.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal && logger != nil {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestIDFromContext(c)),
			zap.Error(err))
	}
	c.JSON(statusFromKind(kind), gin.H{"error": apperrors.MessageOf(err)})
}
