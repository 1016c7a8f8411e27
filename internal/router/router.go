package router

import (
	"net/http"
	"time"

	"beautymart/config"
	"beautymart/internal/handler"
	"beautymart/internal/middleware"
	"beautymart/internal/service"
	"beautymart/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the collaborators the HTTP surface is built on.
type Services struct {
	Payments *service.PaymentService
	Auth     *service.AuthService
	Bookings *service.BookingService
	Hub      *ws.Hub
}

func Setup(cfg *config.Config, svc Services, limiter *middleware.InMemoryRateLimiter, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	authHandler := handler.NewAuthHandler(svc.Auth, logger)
	mpesaHandler := handler.NewMpesaHandler(svc.Payments, logger)
	mpesaWebhookHandler := handler.NewMpesaWebhookHandler(svc.Payments, logger)
	bookingHandler := handler.NewBookingHandler(svc.Bookings, logger)

	authMw := middleware.AuthRequired(&cfg.JWT)
	limitMw := middleware.RateLimit(limiter)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", limitMw, authHandler.Register)
			authGroup.POST("/check-seller-payment", authHandler.CheckSellerPayment)
			authGroup.POST("/login", limitMw, authHandler.Login)
			authGroup.GET("/profile", authMw, authHandler.Profile)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/initiate", limitMw, mpesaHandler.Initiate)
			payments.GET("/status/:packageId", mpesaHandler.StatusByPackage)
			payments.GET("/:checkoutRequestId/status", mpesaHandler.Status)

			// Daraja deliveries; never rate limited
			payments.POST("/callback", mpesaWebhookHandler.Callback)
			payments.POST("/service-callback", mpesaWebhookHandler.Callback)
			payments.POST("/seller-package-callback", mpesaWebhookHandler.Callback)
		}

		bookings := api.Group("/service-bookings")
		{
			bookings.POST("", limitMw, bookingHandler.Create)
			bookings.GET("/:bookingId/status", bookingHandler.Status)
			bookings.GET("/user/:userId", bookingHandler.ListByUser)
		}
	}

	r.GET("/ws/payments/:checkoutRequestId", ws.UpgradePaymentWS(svc.Payments, svc.Hub, logger))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	c.MaxAge = 12 * time.Hour
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
