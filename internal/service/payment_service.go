package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"beautymart/internal/domain"
	"beautymart/internal/events"
	"beautymart/internal/models"
	"beautymart/internal/repository"
	"beautymart/pkg/mpesa"

	"go.uber.org/zap"
)

var (
	ErrValidation            = errors.New("invalid payment request")
	ErrAuthFailure           = errors.New("payment gateway authentication failed")
	ErrInitiationFailure     = errors.New("payment initiation failed")
	ErrQueryFailure          = errors.New("payment status query failed")
	ErrUnknownRequest        = errors.New("unknown payment request")
	ErrReconciliationFailure = errors.New("payment reconciliation failed")
)

// Callback paths registered with Daraja, relative to the public base URL.
const (
	CallbackPath              = "/api/v1/payments/callback"
	ServiceCallbackPath       = "/api/v1/payments/service-callback"
	SellerPackageCallbackPath = "/api/v1/payments/seller-package-callback"
)

type PaymentStore interface {
	Create(ctx context.Context, p *models.PaymentRequest) error
	GetByCheckoutID(ctx context.Context, checkoutID string) (*models.PaymentRequest, error)
	FindByPackage(ctx context.Context, packageID, timestamp string) (*models.PaymentRequest, error)
	Transition(ctx context.Context, checkoutID string, s models.Settlement) (bool, error)
	MarkReconciled(ctx context.Context, checkoutID string, at time.Time) error
	ListUnreconciled(ctx context.Context, settledBefore time.Time, limit int) ([]models.PaymentRequest, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentRequest, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type BookingStore interface {
	Create(ctx context.Context, b *models.ServiceBooking) error
	GetByID(ctx context.Context, id uint) (*models.ServiceBooking, error)
	ListByUser(ctx context.Context, userID uint) ([]models.ServiceBooking, error)
	SetCheckoutID(ctx context.Context, id uint, checkoutID string) error
	MarkFailed(ctx context.Context, id uint) error
	Settle(ctx context.Context, id uint, status, receipt string, transactionDate *time.Time) (bool, error)
}

// SettleObserver is told about every payment whose transition out of pending applied.
type SettleObserver interface {
	PaymentSettled(ctx context.Context, ev events.PaymentSettled)
}

// PaymentService owns the STK push lifecycle: initiation, callback, polling
// and the reconciliation that follows a terminal result.
type PaymentService struct {
	payments        PaymentStore
	users           UserStore
	bookings        BookingStore
	gateway         mpesa.Gateway
	composer        *mpesa.Composer
	callbackBaseURL string
	observers       []SettleObserver
	logger          *zap.Logger
	now             func() time.Time
}

func NewPaymentService(
	payments PaymentStore,
	users UserStore,
	bookings BookingStore,
	gateway mpesa.Gateway,
	composer *mpesa.Composer,
	callbackBaseURL string,
	logger *zap.Logger,
	observers ...SettleObserver,
) *PaymentService {
	return &PaymentService{
		payments:        payments,
		users:           users,
		bookings:        bookings,
		gateway:         gateway,
		composer:        composer,
		callbackBaseURL: callbackBaseURL,
		observers:       observers,
		logger:          logger,
		now:             time.Now,
	}
}

// PackagePayment is a generic package purchase.
type PackagePayment struct {
	Amount      int64
	Phone       string
	PackageID   string
	PackageName string
	PayerEmail  string
}

type InitiateResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	Timestamp         string
	Amount            int64
	CustomerMessage   string
}

type initiateInput struct {
	purpose     string
	amount      int64
	phone       string
	referenceID string
	packageName string
	payerEmail  string
	pendingUser *models.PendingUser
	accountRef  string
	description string
	callbackURL string
}

func (s *PaymentService) InitiatePackage(ctx context.Context, in PackagePayment) (*InitiateResult, error) {
	if in.PackageID == "" {
		return nil, fmt.Errorf("%w: package id is required", ErrValidation)
	}
	return s.initiate(ctx, initiateInput{
		purpose:     domain.PurposeGenericPackage,
		amount:      in.Amount,
		phone:       in.Phone,
		referenceID: in.PackageID,
		packageName: in.PackageName,
		payerEmail:  in.PayerEmail,
		accountRef:  "PKG-" + in.PackageID,
		description: "Payment for " + in.PackageName + " package",
		callbackURL: s.callbackBaseURL + CallbackPath,
	})
}

// InitiateSellerOnboarding charges the package price and parks the account
// details on the payment request until the payment completes.
func (s *PaymentService) InitiateSellerOnboarding(ctx context.Context, phone string, pkg domain.SellerPackage, pending *models.PendingUser) (*InitiateResult, error) {
	if pending == nil || pending.Email == "" {
		return nil, fmt.Errorf("%w: pending account is required", ErrValidation)
	}
	return s.initiate(ctx, initiateInput{
		purpose:     domain.PurposeSellerOnboarding,
		amount:      pkg.Price,
		phone:       phone,
		referenceID: pkg.ID,
		packageName: pkg.Name,
		payerEmail:  pending.Email,
		pendingUser: pending,
		accountRef:  "PKG-" + pkg.ID,
		description: "Payment for " + pkg.ID + " seller package",
		callbackURL: s.callbackBaseURL + SellerPackageCallbackPath,
	})
}

func (s *PaymentService) InitiateServiceBooking(ctx context.Context, b *models.ServiceBooking) (*InitiateResult, error) {
	if b == nil || b.ID == 0 {
		return nil, fmt.Errorf("%w: booking is required", ErrValidation)
	}
	bookingID := strconv.FormatUint(uint64(b.ID), 10)
	return s.initiate(ctx, initiateInput{
		purpose:     domain.PurposeServiceBooking,
		amount:      b.Amount,
		phone:       b.CustomerPhone,
		referenceID: bookingID,
		packageName: b.ServiceName,
		payerEmail:  b.CustomerEmail,
		accountRef:  "SVC-" + bookingID,
		description: "Payment for " + b.ServiceName,
		callbackURL: s.callbackBaseURL + ServiceCallbackPath,
	})
}

// initiate signs and sends the push, then stores the pending request before
// returning, so a callback that arrives right away always finds it.
func (s *PaymentService) initiate(ctx context.Context, in initiateInput) (*InitiateResult, error) {
	req, err := s.composer.STKPush(mpesa.PushInput{
		Phone:            in.phone,
		Amount:           in.amount,
		CallbackURL:      in.callbackURL,
		AccountReference: in.accountRef,
		Description:      in.description,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	resp, err := s.gateway.STKPush(ctx, req)
	if err != nil {
		s.logger.Warn("[mpesa] stk push failed",
			zap.String("purpose", in.purpose),
			zap.String("reference_id", in.referenceID),
			zap.Error(err))
		if errors.Is(err, mpesa.ErrAuth) {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailure, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInitiationFailure, err)
	}

	record := &models.PaymentRequest{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Purpose:           in.purpose,
		Amount:            in.amount,
		PhoneNumber:       req.PhoneNumber,
		Status:            domain.PaymentStatusPending,
		PayerEmail:        in.payerEmail,
		ReferenceID:       in.referenceID,
		PackageName:       in.packageName,
		Timestamp:         req.Timestamp,
		PendingUser:       in.pendingUser,
	}
	if err := s.payments.Create(ctx, record); err != nil {
		s.logger.Error("[mpesa] accepted push could not be stored",
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.Error(err))
		return nil, fmt.Errorf("store payment request: %w", err)
	}

	return &InitiateResult{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Timestamp:         req.Timestamp,
		Amount:            in.amount,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// Get returns the stored request without contacting the gateway.
func (s *PaymentService) Get(ctx context.Context, checkoutID string) (*models.PaymentRequest, error) {
	p, err := s.payments.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownRequest
		}
		return nil, err
	}
	return p, nil
}

// HandleCallback applies a Daraja callback body. Unknown ids and requests
// that are already terminal are ignored.
func (s *PaymentService) HandleCallback(ctx context.Context, body []byte) error {
	res, err := mpesa.ParseCallback(body)
	if err != nil {
		s.logger.Warn("[mpesa callback] unreadable body", zap.Error(err))
		return err
	}
	p, err := s.Get(ctx, res.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, ErrUnknownRequest) {
			s.logger.Warn("[mpesa callback] unknown checkout request",
				zap.String("checkout_request_id", res.CheckoutRequestID),
				zap.Int("result_code", res.ResultCode))
		}
		return err
	}
	if p.IsTerminal() {
		s.logger.Info("[mpesa callback] already settled",
			zap.String("checkout_request_id", p.CheckoutRequestID),
			zap.String("status", p.Status))
		return nil
	}
	_, err = s.settle(ctx, p, res)
	return err
}

// PollStatus resolves a request against the gateway while it is pending.
// A terminal request is returned as stored.
func (s *PaymentService) PollStatus(ctx context.Context, checkoutID string) (*models.PaymentRequest, error) {
	p, err := s.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if p.IsTerminal() {
		return p, nil
	}

	resp, err := s.gateway.QueryStatus(ctx, s.composer.Query(checkoutID))
	if err != nil {
		switch {
		case errors.Is(err, mpesa.ErrRequestProcessing):
			return p, nil
		case errors.Is(err, mpesa.ErrUnknownCheckout):
			return nil, fmt.Errorf("%w: %v", ErrUnknownRequest, err)
		}
		s.logger.Warn("[mpesa] status query failed",
			zap.String("checkout_request_id", checkoutID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	res, ok := resp.Result()
	if !ok {
		return p, nil
	}
	applied, err := s.settle(ctx, p, res)
	if err != nil {
		return nil, err
	}
	if !applied {
		// settled concurrently by a callback; report what was stored
		return s.Get(ctx, checkoutID)
	}
	return p, nil
}

// StatusByPackage resolves the request a client started for packageID at timestamp.
func (s *PaymentService) StatusByPackage(ctx context.Context, packageID, timestamp string) (*models.PaymentRequest, error) {
	p, err := s.payments.FindByPackage(ctx, packageID, timestamp)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownRequest
		}
		return nil, err
	}
	return s.PollStatus(ctx, p.CheckoutRequestID)
}

// settle moves p out of pending. Only the caller whose transition applied
// runs reconciliation and notifies observers; p is updated in place then.
func (s *PaymentService) settle(ctx context.Context, p *models.PaymentRequest, res *mpesa.Result) (bool, error) {
	st := models.Settlement{
		Status:     domain.PaymentStatusFailed,
		ResultCode: res.ResultCode,
		ResultDesc: res.ResultDesc,
		SettledAt:  s.now(),
	}
	if res.Success {
		st.Status = domain.PaymentStatusCompleted
		st.MpesaReceiptNumber = res.ReceiptNumber
		st.TransactionDate = res.TransactionDate
		st.PaidAmount = res.Amount
	}

	applied, err := s.payments.Transition(ctx, p.CheckoutRequestID, st)
	if err != nil {
		s.logger.Error("[mpesa] transition failed",
			zap.String("checkout_request_id", p.CheckoutRequestID),
			zap.Error(err))
		return false, fmt.Errorf("settle payment request: %w", err)
	}
	if !applied {
		return false, nil
	}

	code := st.ResultCode
	p.Status = st.Status
	p.MpesaReceiptNumber = st.MpesaReceiptNumber
	p.TransactionDate = st.TransactionDate
	p.PaidAmount = st.PaidAmount
	p.ResultCode = &code
	p.ResultDesc = st.ResultDesc
	p.UpdatedAt = st.SettledAt

	s.logger.Info("[mpesa] payment settled",
		zap.String("checkout_request_id", p.CheckoutRequestID),
		zap.String("purpose", p.Purpose),
		zap.String("status", p.Status),
		zap.Int("result_code", code),
		zap.String("receipt", p.MpesaReceiptNumber))

	// follow-up work must not die with the inbound request
	bg := context.WithoutCancel(ctx)
	// a failed hook is logged by reconcile and retried by the sweeper, which
	// picks up every terminal request not yet marked reconciled
	_ = s.reconcile(bg, p)
	ev := events.NewPaymentSettled(p, st)
	for _, o := range s.observers {
		o.PaymentSettled(bg, ev)
	}
	return true, nil
}
