package auth

import (
	"testing"
	"time"

	"beautymart/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Hour, Issuer: "beautymart"}

	token, err := GenerateAccessToken(cfg, 7, "amina", "amina@example.com", "seller")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "amina", claims.UserName)
	assert.Equal(t, "seller", claims.AccountType)
	assert.Equal(t, "beautymart", claims.Issuer)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "secret", AccessExpiry: time.Hour}
	token, err := GenerateAccessToken(cfg, 1, "u", "u@example.com", "buyer")
	require.NoError(t, err)

	_, err = ParseAccessToken(&config.JWTConfig{AccessSecret: "other"}, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "secret", AccessExpiry: -time.Minute}
	token, err := GenerateAccessToken(cfg, 1, "u", "u@example.com", "buyer")
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
