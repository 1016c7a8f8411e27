package service

import (
	"context"
	"testing"
	"time"

	"beautymart/config"
	"beautymart/internal/auth"
	"beautymart/internal/domain"
	"beautymart/pkg/mpesa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(f *fixture) *AuthService {
	cfg := &config.Config{JWT: config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "beautymart"}}
	s := NewAuthService(cfg, f.users, f.svc, zap.NewNop())
	s.hashCost = bcrypt.MinCost
	return s
}

func TestRegisterBuyer(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)

	res, err := s.Register(context.Background(), RegisterInput{
		UserName: "wanjiku", Email: "Wanjiku@Example.com", Password: "secret123", AccountType: domain.AccountTypeBuyer,
	})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, "wanjiku@example.com", res.User.Email)
	assert.Nil(t, res.Payment)
	assert.Empty(t, f.gateway.pushes)

	claims, err := auth.ParseAccessToken(s.jwt, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, domain.AccountTypeBuyer, claims.AccountType)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterInput{UserName: "wanjiku", Email: "w@example.com", Password: "pw", AccountType: domain.AccountTypeBuyer})
	require.NoError(t, err)

	_, err = s.Register(ctx, RegisterInput{UserName: "other", Email: "w@example.com", Password: "pw", AccountType: domain.AccountTypeBuyer})
	assert.ErrorIs(t, err, ErrEmailExists)
	_, err = s.Register(ctx, RegisterInput{UserName: "wanjiku", Email: "new@example.com", Password: "pw", AccountType: domain.AccountTypeBuyer})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestRegisterSellerValidation(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{UserName: "a", Email: "a@example.com", Password: "pw", AccountType: domain.AccountTypeSeller, PackageID: "gold", PaymentPhone: "0712345678"})
	assert.ErrorIs(t, err, ErrInvalidPackage)
	_, err = s.Register(ctx, RegisterInput{UserName: "a", Email: "a@example.com", Password: "pw", AccountType: domain.AccountTypeSeller, PackageID: "basic"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.Register(ctx, RegisterInput{UserName: "a", Email: "a@example.com", Password: "pw", AccountType: "admin"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.gateway.pushes)
}

func TestSellerRegistrationCompletesAfterPayment(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)
	ctx := context.Background()

	res, err := s.Register(ctx, RegisterInput{
		UserName: "amina", Email: "amina@example.com", Password: "secret123",
		AccountType: domain.AccountTypeSeller, PackageID: "standard", PaymentPhone: "+254712345678",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	assert.Nil(t, res.User)
	assert.Equal(t, int64(1500), res.Payment.Amount)
	assert.Equal(t, 0, f.users.createCount())

	f.gateway.queryErr = mpesa.ErrRequestProcessing
	_, _, err = s.CheckSellerPayment(ctx, res.Payment.CheckoutRequestID)
	assert.ErrorIs(t, err, ErrPaymentPending)

	require.NoError(t, f.svc.HandleCallback(ctx, successCallback(res.Payment.CheckoutRequestID)))

	u, token, err := s.CheckSellerPayment(ctx, res.Payment.CheckoutRequestID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "standard", u.SellerPackageID)
	assert.Equal(t, 2, u.PhotoUploads)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")))

	// asking again returns the same account
	again, _, err := s.CheckSellerPayment(ctx, res.Payment.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, 1, f.users.createCount())

	_, loginToken, err := s.Login(ctx, "amina@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, loginToken)
}

func TestCheckSellerPaymentFailed(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)
	f.seedPending("ws_1", domain.PurposeSellerOnboarding, "basic", nil)
	require.NoError(t, f.svc.HandleCallback(context.Background(), failureCallback("ws_1", "1032")))

	_, _, err := s.CheckSellerPayment(context.Background(), "ws_1")
	assert.ErrorIs(t, err, ErrPaymentFailed)
}

func TestCheckSellerPaymentRejectsOtherPurposes(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)
	f.seedPending("ws_1", domain.PurposeGenericPackage, "basic", nil)
	require.NoError(t, f.svc.HandleCallback(context.Background(), successCallback("ws_1")))

	_, _, err := s.CheckSellerPayment(context.Background(), "ws_1")
	assert.ErrorIs(t, err, ErrNotSellerPayment)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)
	ctx := context.Background()
	_, err := s.Register(ctx, RegisterInput{UserName: "w", Email: "w@example.com", Password: "right", AccountType: domain.AccountTypeBuyer})
	require.NoError(t, err)

	_, _, err = s.Login(ctx, "w@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, _, err = s.Login(ctx, "nobody@example.com", "right")
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestProfile(t *testing.T) {
	f := newFixture()
	s := newAuthService(f)
	res, err := s.Register(context.Background(), RegisterInput{UserName: "w", Email: "w@example.com", Password: "pw", AccountType: domain.AccountTypeBuyer})
	require.NoError(t, err)

	u, err := s.Profile(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "w", u.UserName)

	_, err = s.Profile(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
