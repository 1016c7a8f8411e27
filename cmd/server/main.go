package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beautymart/config"
	"beautymart/internal/database"
	"beautymart/internal/events"
	"beautymart/internal/handler"
	"beautymart/internal/middleware"
	"beautymart/internal/repository"
	"beautymart/internal/router"
	"beautymart/internal/service"
	"beautymart/internal/ws"
	"beautymart/pkg/mpesa"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("validators", zap.Error(err))
	}

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	ctx := context.Background()
	var paymentStore service.PaymentStore
	switch cfg.Store.Driver {
	case "dynamodb":
		ddb, err := database.NewDynamoDB(ctx, &cfg.Store)
		if err != nil {
			logger.Fatal("dynamodb", zap.Error(err))
		}
		paymentStore = repository.NewPaymentDynamoRepository(ddb, cfg.Store.DynamoTable)
		logger.Info("payment requests stored in dynamodb", zap.String("table", cfg.Store.DynamoTable))
	default:
		paymentStore = repository.NewPaymentRepository(db)
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("redis url", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, token cache falls back to memory", zap.Error(err))
			rdb = nil
		}
	}

	httpClient := &http.Client{Timeout: cfg.Mpesa.HTTPTimeout}
	tokens := mpesa.NewTokenSource(cfg.Mpesa.BaseURL(), cfg.Mpesa.ConsumerKey, cfg.Mpesa.ConsumerSecret, httpClient, rdb)
	gateway := mpesa.NewClient(cfg.Mpesa.BaseURL(), tokens, httpClient, logger)
	composer := mpesa.NewComposer(cfg.Mpesa.ShortCode, cfg.Mpesa.Passkey)

	hub := ws.NewHub()
	observers := []service.SettleObserver{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.SettledTopic, logger)
		defer publisher.Close()
		observers = append(observers, publisher)
		logger.Info("publishing settlements to kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	userRepo := repository.NewUserRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	paymentSvc := service.NewPaymentService(paymentStore, userRepo, bookingRepo, gateway, composer, cfg.Mpesa.CallbackBaseURL, logger, observers...)
	authSvc := service.NewAuthService(cfg, userRepo, paymentSvc, logger)
	bookingSvc := service.NewBookingService(bookingRepo, paymentSvc, logger)

	if cfg.Sweeper.Enabled {
		sweeper, err := service.NewSweeper(paymentSvc, cfg.Sweeper, logger)
		if err != nil {
			logger.Fatal("sweeper", zap.Error(err))
		}
		sweeper.Start()
		defer func() {
			if err := sweeper.Stop(); err != nil {
				logger.Warn("sweeper shutdown", zap.Error(err))
			}
		}()
	}

	limiter := middleware.NewInMemoryRateLimiter(30, time.Minute)
	defer limiter.Close()

	engine := router.Setup(cfg, router.Services{
		Payments: paymentSvc,
		Auth:     authSvc,
		Bookings: bookingSvc,
		Hub:      hub,
	}, limiter, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("mpesa_env", cfg.Mpesa.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
