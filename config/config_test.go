package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMpesaEnv(t *testing.T) {
	t.Setenv("MPESA_CONSUMER_KEY", "key")
	t.Setenv("MPESA_CONSUMER_SECRET", "secret")
	t.Setenv("MPESA_PASSKEY", "passkey")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_CALLBACK_BASE_URL", "https://api.example.com/")
}

func TestLoadDefaults(t *testing.T) {
	setMpesaEnv(t)
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092")
	t.Setenv("SWEEPER_INTERVAL", "not-a-duration")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://api.example.com", cfg.Mpesa.CallbackBaseURL)
	assert.Equal(t, "https://sandbox.safaricom.co.ke", cfg.Mpesa.BaseURL())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, "mysql", cfg.Store.Driver)
}

func TestProductionBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.safaricom.co.ke", MpesaConfig{Env: "production"}.BaseURL())
}

func TestValidateReportsMissing(t *testing.T) {
	t.Setenv("MPESA_CONSUMER_KEY", "")
	t.Setenv("MPESA_PASSKEY", "")
	cfg := Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MPESA_CONSUMER_KEY")
	assert.Contains(t, err.Error(), "MPESA_PASSKEY")

	setMpesaEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	assert.Error(t, Load().Validate())
}
