package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Mpesa    MpesaConfig
	Store    StoreConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Sweeper  SweeperConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string // empty allows any origin
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// MpesaConfig holds the Daraja credentials used for STK push and status queries.
type MpesaConfig struct {
	Env             string // sandbox | production
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	ShortCode       string
	CallbackBaseURL string // publicly reachable, e.g. https://api.example.com
	HTTPTimeout     time.Duration
}

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"
)

// BaseURL selects the Daraja host for the configured environment.
func (m MpesaConfig) BaseURL() string {
	if m.Env == "production" {
		return productionBaseURL
	}
	return sandboxBaseURL
}

// StoreConfig selects the payment request store. Users and bookings always live in MySQL.
type StoreConfig struct {
	Driver         string // mysql | dynamodb
	DynamoTable    string
	DynamoEndpoint string
	AWSRegion      string
	AWSAccessKey   string
	AWSSecretKey   string
}

type RedisConfig struct {
	URL string // empty disables the shared token cache
}

type KafkaConfig struct {
	Brokers      []string // empty disables event publishing
	SettledTopic string
}

type SweeperConfig struct {
	Enabled        bool
	Interval       time.Duration
	ReconcileAfter time.Duration
	StalePending   time.Duration
	BatchSize      int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8099"),
			Env:          getEnvOrDefault("APP_ENV", "development"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			CORSOrigins:  splitNonEmpty(os.Getenv("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			DSN:             getEnvOrDefault("DATABASE_DSN", "beautymart:beautymart@tcp(localhost:3306)/beautymart?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnvOrDefault("JWT_SECRET", "change-me-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_EXPIRY", time.Hour),
			Issuer:       getEnvOrDefault("JWT_ISSUER", "beautymart"),
		},
		Mpesa: MpesaConfig{
			Env:             getEnvOrDefault("MPESA_ENV", "sandbox"),
			ConsumerKey:     os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  os.Getenv("MPESA_CONSUMER_SECRET"),
			Passkey:         os.Getenv("MPESA_PASSKEY"),
			ShortCode:       os.Getenv("MPESA_SHORTCODE"),
			CallbackBaseURL: strings.TrimRight(os.Getenv("MPESA_CALLBACK_BASE_URL"), "/"),
			HTTPTimeout:     getEnvAsDuration("MPESA_HTTP_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver:         getEnvOrDefault("STORE_DRIVER", "mysql"),
			DynamoTable:    getEnvOrDefault("PAYMENTS_TABLE", "payment_requests"),
			DynamoEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
			AWSRegion:      getEnvOrDefault("AWS_REGION", "us-east-1"),
			AWSAccessKey:   getEnvOrDefault("AWS_ACCESS_KEY_ID", "local"),
			AWSSecretKey:   getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "local"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			SettledTopic: getEnvOrDefault("KAFKA_PAYMENT_SETTLED_TOPIC", "payment_settled"),
		},
		Sweeper: SweeperConfig{
			Enabled:        getEnvOrDefault("SWEEPER_ENABLED", "true") == "true",
			Interval:       getEnvAsDuration("SWEEPER_INTERVAL", time.Minute),
			ReconcileAfter: getEnvAsDuration("SWEEPER_RECONCILE_AFTER", time.Minute),
			StalePending:   getEnvAsDuration("SWEEPER_STALE_PENDING", 5*time.Minute),
			BatchSize:      getEnvAsInt("SWEEPER_BATCH_SIZE", 50),
		},
	}
}

// Validate reports missing settings the payment flow cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Mpesa.ConsumerKey == "" {
		missing = append(missing, "MPESA_CONSUMER_KEY")
	}
	if c.Mpesa.ConsumerSecret == "" {
		missing = append(missing, "MPESA_CONSUMER_SECRET")
	}
	if c.Mpesa.Passkey == "" {
		missing = append(missing, "MPESA_PASSKEY")
	}
	if c.Mpesa.ShortCode == "" {
		missing = append(missing, "MPESA_SHORTCODE")
	}
	if c.Mpesa.CallbackBaseURL == "" {
		missing = append(missing, "MPESA_CALLBACK_BASE_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	if c.Store.Driver != "mysql" && c.Store.Driver != "dynamodb" {
		return errors.New("STORE_DRIVER must be mysql or dynamodb")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
