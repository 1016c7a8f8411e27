package handler

import (
	"context"
	"errors"
	"net/http"

	"beautymart/internal/domain"
	"beautymart/internal/middleware"
	"beautymart/internal/models"
	"beautymart/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error)
	CheckSellerPayment(ctx context.Context, checkoutID string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Profile(ctx context.Context, userID uint) (*models.User, error)
}

type AuthHandler struct {
	svc    AuthAPI
	logger *zap.Logger
}

func NewAuthHandler(svc AuthAPI, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type RegisterRequest struct {
	UserName     string `json:"userName" binding:"required,min=3,max=64"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	AccountType  string `json:"accountType" binding:"required,oneof=buyer seller"`
	PackageID    string `json:"packageId"`
	PhoneNumber  string `json:"phoneNumber" binding:"omitempty,kephone"`
	PaymentPhone string `json:"paymentPhone" binding:"omitempty,kephone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CheckSellerPaymentRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId" binding:"required"`
}

// userView is the public shape of an account.
func userView(u *models.User) gin.H {
	v := gin.H{
		"id":          u.ID,
		"userName":    u.UserName,
		"email":       u.Email,
		"accountType": u.AccountType,
	}
	if u.AccountType == domain.AccountTypeSeller {
		v["sellerPackage"] = gin.H{
			"packageId":    u.SellerPackageID,
			"photoUploads": u.PhotoUploads,
			"videoUploads": u.VideoUploads,
		}
	}
	return v
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		UserName:     req.UserName,
		Email:        req.Email,
		Password:     req.Password,
		AccountType:  req.AccountType,
		PackageID:    req.PackageID,
		PhoneNumber:  req.PhoneNumber,
		PaymentPhone: req.PaymentPhone,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrUsernameExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidPackage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			writePaymentError(c, h.logger, err)
		}
		return
	}
	if res.Payment != nil {
		c.JSON(http.StatusOK, gin.H{
			"message":           "Payment initiated. Please complete M-Pesa payment to finish registration.",
			"requiresPayment":   true,
			"checkoutRequestId": res.Payment.CheckoutRequestID,
			"amount":            res.Payment.Amount,
			"packageName":       res.Package.Name,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   res.Token,
		"user":    userView(res.User),
	})
}

// CheckSellerPayment completes seller registration once the package is paid.
func (h *AuthHandler) CheckSellerPayment(c *gin.Context) {
	var req CheckSellerPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkoutRequestId is required"})
		return
	}
	u, token, err := h.svc.CheckSellerPayment(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentPending):
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"status":  domain.PollPending,
				"message": "Payment is still pending. Please complete the M-Pesa payment.",
			})
		case errors.Is(err, service.ErrPaymentFailed):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"status":  domain.PollFailed,
				"error":   "Payment failed. Please try registering again.",
			})
		case errors.Is(err, service.ErrNotSellerPayment):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			writePaymentError(c, h.logger, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Registration completed successfully",
		"token":   token,
		"user":    userView(u),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("[auth] login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userView(u)})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	u, err := h.svc.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("[auth] profile lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, userView(u))
}
