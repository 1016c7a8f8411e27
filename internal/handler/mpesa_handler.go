package handler

import (
	"context"
	"net/http"

	"beautymart/internal/domain"
	"beautymart/internal/models"
	"beautymart/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentAPI is what the client-facing payment endpoints need.
type PaymentAPI interface {
	InitiatePackage(ctx context.Context, in service.PackagePayment) (*service.InitiateResult, error)
	PollStatus(ctx context.Context, checkoutID string) (*models.PaymentRequest, error)
	StatusByPackage(ctx context.Context, packageID, timestamp string) (*models.PaymentRequest, error)
}

type MpesaHandler struct {
	payments PaymentAPI
	logger   *zap.Logger
}

func NewMpesaHandler(payments PaymentAPI, logger *zap.Logger) *MpesaHandler {
	return &MpesaHandler{payments: payments, logger: logger}
}

type InitiatePaymentRequest struct {
	Amount      int64  `json:"amount" binding:"required,min=1"`
	PhoneNumber string `json:"phoneNumber" binding:"required,kephone"`
	PackageID   string `json:"packageId" binding:"required"`
	PackageName string `json:"packageName"`
	Email       string `json:"email" binding:"omitempty,email"`
}

// Initiate sends an STK push for a package payment.
func (h *MpesaHandler) Initiate(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PackageName == "" {
		req.PackageName = req.PackageID
	}
	res, err := h.payments.InitiatePackage(c.Request.Context(), service.PackagePayment{
		Amount:      req.Amount,
		Phone:       req.PhoneNumber,
		PackageID:   req.PackageID,
		PackageName: req.PackageName,
		PayerEmail:  req.Email,
	})
	if err != nil {
		writePaymentError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"message":             "STK push sent. Complete the payment on your phone.",
		"checkoutRequestId":   res.CheckoutRequestID,
		"timestamp":           res.Timestamp,
		"customerMessage":     res.CustomerMessage,
		"pollIntervalSeconds": domain.PollIntervalSeconds,
		"maxPollAttempts":     domain.MaxPollAttempts,
	})
}

// StatusByPackage is the lookup older clients use: package id plus the initiation timestamp.
func (h *MpesaHandler) StatusByPackage(c *gin.Context) {
	timestamp := c.Query("timestamp")
	if timestamp == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp is required"})
		return
	}
	p, err := h.payments.StatusByPackage(c.Request.Context(), c.Param("packageId"), timestamp)
	if err != nil {
		writePaymentError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.PollAnswer(p.Status)})
}

func (h *MpesaHandler) Status(c *gin.Context) {
	p, err := h.payments.PollStatus(c.Request.Context(), c.Param("checkoutRequestId"))
	if err != nil {
		writePaymentError(c, h.logger, err)
		return
	}
	resp := gin.H{
		"status":            domain.PollAnswer(p.Status),
		"paymentStatus":     p.Status,
		"checkoutRequestId": p.CheckoutRequestID,
	}
	if p.MpesaReceiptNumber != "" {
		resp["mpesaReceiptNumber"] = p.MpesaReceiptNumber
	}
	if p.IsTerminal() && p.ResultDesc != "" {
		resp["resultDesc"] = p.ResultDesc
	}
	c.JSON(http.StatusOK, resp)
}
