package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"beautymart/internal/service"
	"beautymart/pkg/mpesa"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxCallbackBody = 64 << 10

// CallbackProcessor applies a raw Daraja callback body.
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, body []byte) error
}

type MpesaWebhookHandler struct {
	processor CallbackProcessor
	logger    *zap.Logger
}

func NewMpesaWebhookHandler(processor CallbackProcessor, logger *zap.Logger) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{processor: processor, logger: logger}
}

// Callback acknowledges every delivery with 200. Daraja retries anything
// else, and a retry can never change a settled request.
func (h *MpesaWebhookHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.logger.Warn("[mpesa callback] read body", zap.String("route", c.FullPath()), zap.Error(err))
		h.ack(c)
		return
	}
	if err := h.processor.HandleCallback(c.Request.Context(), body); err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownRequest), errors.Is(err, mpesa.ErrMalformedCallback):
			// already logged at warn by the service
		default:
			h.logger.Error("[mpesa callback] processing failed",
				zap.String("route", c.FullPath()),
				zap.Error(err))
		}
	}
	h.ack(c)
}

func (h *MpesaWebhookHandler) ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
