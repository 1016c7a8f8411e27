package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beautymart/config"
	"beautymart/internal/auth"
	"beautymart/internal/domain"
	"beautymart/internal/models"
	"beautymart/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists      = errors.New("email already registered")
	ErrUsernameExists   = errors.New("username already taken")
	ErrInvalidCreds     = errors.New("invalid email or password")
	ErrInvalidPackage   = errors.New("invalid seller package: must be one of basic, standard, premium")
	ErrPaymentPending   = errors.New("payment is still pending")
	ErrPaymentFailed    = errors.New("payment failed")
	ErrNotSellerPayment = errors.New("payment is not a seller package payment")
	ErrUserNotFound     = errors.New("user not found")
)

// SellerPayments is the part of the payment flow seller registration uses.
type SellerPayments interface {
	InitiateSellerOnboarding(ctx context.Context, phone string, pkg domain.SellerPackage, pending *models.PendingUser) (*InitiateResult, error)
	PollStatus(ctx context.Context, checkoutID string) (*models.PaymentRequest, error)
	EnsureSellerAccount(ctx context.Context, p *models.PaymentRequest) (*models.User, error)
}

type AuthService struct {
	jwt      *config.JWTConfig
	users    UserStore
	payments SellerPayments
	logger   *zap.Logger
	hashCost int
}

func NewAuthService(cfg *config.Config, users UserStore, payments SellerPayments, logger *zap.Logger) *AuthService {
	return &AuthService{jwt: &cfg.JWT, users: users, payments: payments, logger: logger, hashCost: bcrypt.DefaultCost}
}

type RegisterInput struct {
	UserName     string
	Email        string
	Password     string
	AccountType  string
	PackageID    string
	PhoneNumber  string
	PaymentPhone string
}

// RegisterResult carries a ready account for buyers, or the started package
// payment for sellers, whose account exists only once that payment completes.
type RegisterResult struct {
	User    *models.User
	Token   string
	Payment *InitiateResult
	Package *domain.SellerPackage
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.UserName = strings.TrimSpace(in.UserName)
	if in.UserName == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: all required fields must be provided", ErrValidation)
	}
	var pkg domain.SellerPackage
	switch in.AccountType {
	case domain.AccountTypeBuyer:
	case domain.AccountTypeSeller:
		var ok bool
		if pkg, ok = domain.LookupSellerPackage(in.PackageID); !ok {
			return nil, ErrInvalidPackage
		}
		if in.PaymentPhone == "" {
			return nil, fmt.Errorf("%w: payment phone number is required for sellers", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: invalid account type", ErrValidation)
	}

	if err := s.ensureAvailable(ctx, in.Email, in.UserName); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	if in.AccountType == domain.AccountTypeSeller {
		res, err := s.payments.InitiateSellerOnboarding(ctx, in.PaymentPhone, pkg, &models.PendingUser{
			UserName:     in.UserName,
			Email:        in.Email,
			PasswordHash: string(hash),
			PhoneNumber:  in.PhoneNumber,
			AccountType:  domain.AccountTypeSeller,
			PackageID:    pkg.ID,
		})
		if err != nil {
			return nil, err
		}
		return &RegisterResult{Payment: res, Package: &pkg}, nil
	}

	u := &models.User{
		UserName:     in.UserName,
		Email:        in.Email,
		PasswordHash: string(hash),
		PhoneNumber:  in.PhoneNumber,
		AccountType:  domain.AccountTypeBuyer,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	token, err := s.token(u)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: u, Token: token}, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, email, username string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return ErrEmailExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	_, err = s.users.GetByUsername(ctx, username)
	if err == nil {
		return ErrUsernameExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

// CheckSellerPayment finishes seller registration once the package payment
// completed, returning the account and a fresh token.
func (s *AuthService) CheckSellerPayment(ctx context.Context, checkoutID string) (*models.User, string, error) {
	p, err := s.payments.PollStatus(ctx, checkoutID)
	if err != nil {
		return nil, "", err
	}
	if p.Purpose != domain.PurposeSellerOnboarding {
		return nil, "", ErrNotSellerPayment
	}
	switch p.Status {
	case domain.PaymentStatusPending:
		return nil, "", ErrPaymentPending
	case domain.PaymentStatusFailed:
		return nil, "", ErrPaymentFailed
	}
	u, err := s.payments.EnsureSellerAccount(ctx, p)
	if err != nil {
		s.logger.Error("[auth] seller account for completed payment",
			zap.String("checkout_request_id", checkoutID),
			zap.Error(err))
		return nil, "", fmt.Errorf("%w: %v", ErrReconciliationFailure, err)
	}
	token, err := s.token(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	token, err := s.token(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) token(u *models.User) (string, error) {
	return auth.GenerateAccessToken(s.jwt, u.ID, u.UserName, u.Email, u.AccountType)
}
