package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/notification"
)

// respondError maps service errors onto HTTP responses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *models.ValidationError
	var chErr *notification.ChannelError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "medicine was modified concurrently, retry"})
	case errors.As(err, &chErr):
		logger.Warn("notification delivery failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send notification"})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
