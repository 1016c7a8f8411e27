package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"beautymart/internal/domain"
	"beautymart/internal/models"
	"beautymart/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BookingAPI interface {
	Create(ctx context.Context, in service.BookingInput) (*models.ServiceBooking, *service.InitiateResult, error)
	Status(ctx context.Context, id uint) (*models.ServiceBooking, error)
	ListByUser(ctx context.Context, userID uint) ([]models.ServiceBooking, error)
}

type BookingHandler struct {
	svc    BookingAPI
	logger *zap.Logger
}

func NewBookingHandler(svc BookingAPI, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type CreateBookingRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
	ServiceID     string `json:"serviceId" binding:"required"`
	ServiceName   string `json:"serviceName"`
	UserID        *uint  `json:"userId"`
	CustomerName  string `json:"customerName" binding:"required"`
	CustomerEmail string `json:"customerEmail" binding:"required,email"`
	CustomerPhone string `json:"customerPhone" binding:"required,kephone"`
	Amount        int64  `json:"amount" binding:"required,min=1"`
}

func bookingView(b *models.ServiceBooking) gin.H {
	return gin.H{
		"id":                 b.ID,
		"appointmentId":      b.AppointmentID,
		"serviceId":          b.ServiceID,
		"serviceName":        b.ServiceName,
		"paymentStatus":      b.PaymentStatus,
		"amount":             b.Amount,
		"mpesaReceiptNumber": b.MpesaReceiptNumber,
		"transactionDate":    b.TransactionDate,
		"createdAt":          b.CreatedAt,
	}
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	b, res, err := h.svc.Create(c.Request.Context(), service.BookingInput{
		AppointmentID: req.AppointmentID,
		ServiceID:     req.ServiceID,
		ServiceName:   req.ServiceName,
		UserID:        req.UserID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Amount:        req.Amount,
	})
	if err != nil {
		writePaymentError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":             true,
		"message":             "Service booking created and payment initiated",
		"bookingId":           b.ID,
		"checkoutRequestId":   res.CheckoutRequestID,
		"pollIntervalSeconds": domain.PollIntervalSeconds,
		"maxPollAttempts":     domain.MaxPollAttempts,
	})
}

func (h *BookingHandler) Status(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("bookingId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid booking id"})
		return
	}
	b, err := h.svc.Status(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		h.logger.Error("[booking] status failed", zap.Uint64("booking_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "error fetching booking status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": bookingView(b)})
}

func (h *BookingHandler) ListByUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid user id"})
		return
	}
	list, err := h.svc.ListByUser(c.Request.Context(), uint(id))
	if err != nil {
		h.logger.Error("[booking] list failed", zap.Uint64("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "error fetching bookings"})
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, bookingView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": out})
}
