package handler

import (
	"errors"
	"net/http"

	"beautymart/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writePaymentError maps payment flow errors to HTTP responses.
func writePaymentError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment request not found"})
	case errors.Is(err, service.ErrAuthFailure),
		errors.Is(err, service.ErrInitiationFailure),
		errors.Is(err, service.ErrQueryFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.Error("[payments] request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
