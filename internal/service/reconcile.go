package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"beautymart/internal/domain"
	"beautymart/internal/models"
	"beautymart/internal/repository"
	"beautymart/pkg/mpesa"

	"go.uber.org/zap"
)

// unknownToGatewayCode is recorded when a stale request is failed because
// the gateway no longer recognizes its checkout id.
const unknownToGatewayCode = -1

// reconcile runs the follow-up for a terminal request's purpose. Every hook
// is idempotent; ReconciledAt is set only after the hook succeeds, so the
// sweeper can retry a failed one.
func (s *PaymentService) reconcile(ctx context.Context, p *models.PaymentRequest) error {
	var err error
	switch p.Purpose {
	case domain.PurposeSellerOnboarding:
		if p.Status == domain.PaymentStatusCompleted {
			_, err = s.EnsureSellerAccount(ctx, p)
		}
	case domain.PurposeServiceBooking:
		err = s.settleBooking(ctx, p)
	case domain.PurposeGenericPackage:
		// the payment request itself is the package's status row
	default:
		err = fmt.Errorf("unknown purpose %q", p.Purpose)
	}
	if err != nil {
		s.logger.Error("[reconcile] hook failed",
			zap.String("checkout_request_id", p.CheckoutRequestID),
			zap.String("purpose", p.Purpose),
			zap.String("status", p.Status),
			zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrReconciliationFailure, p.CheckoutRequestID, err)
	}

	at := s.now()
	if err := s.payments.MarkReconciled(ctx, p.CheckoutRequestID, at); err != nil {
		s.logger.Warn("[reconcile] could not mark reconciled",
			zap.String("checkout_request_id", p.CheckoutRequestID),
			zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrReconciliationFailure, p.CheckoutRequestID, err)
	}
	p.ReconciledAt = &at
	return nil
}

// EnsureSellerAccount returns the seller account for a completed onboarding
// payment, creating it from the parked details on first use. Package
// entitlements are resolved when the account is created.
func (s *PaymentService) EnsureSellerAccount(ctx context.Context, p *models.PaymentRequest) (*models.User, error) {
	if p.Purpose != domain.PurposeSellerOnboarding || p.Status != domain.PaymentStatusCompleted {
		return nil, fmt.Errorf("payment %s is not a completed seller onboarding", p.CheckoutRequestID)
	}
	pending := p.PendingUser
	if pending == nil || pending.Email == "" {
		return nil, errors.New("payment request carries no pending account")
	}

	u, err := s.users.GetByEmail(ctx, pending.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	packageID := pending.PackageID
	if packageID == "" {
		packageID = p.ReferenceID
	}
	pkg, ok := domain.LookupSellerPackage(packageID)
	if !ok {
		return nil, fmt.Errorf("unknown seller package %q", packageID)
	}
	u = &models.User{
		UserName:        pending.UserName,
		Email:           pending.Email,
		PasswordHash:    pending.PasswordHash,
		PhoneNumber:     pending.PhoneNumber,
		AccountType:     domain.AccountTypeSeller,
		SellerPackageID: pkg.ID,
		PhotoUploads:    pkg.PhotoUploads,
		VideoUploads:    pkg.VideoUploads,
	}
	if err := s.users.Create(ctx, u); err != nil {
		// a concurrent reconciliation may have created it first
		if existing, getErr := s.users.GetByEmail(ctx, pending.Email); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	s.logger.Info("[reconcile] seller account created",
		zap.Uint("user_id", u.ID),
		zap.String("email", u.Email),
		zap.String("package", pkg.ID))
	return u, nil
}

func (s *PaymentService) settleBooking(ctx context.Context, p *models.PaymentRequest) error {
	id, err := strconv.ParseUint(p.ReferenceID, 10, 64)
	if err != nil {
		return fmt.Errorf("booking reference %q: %w", p.ReferenceID, err)
	}
	status := domain.BookingPaymentFailed
	if p.Status == domain.PaymentStatusCompleted {
		status = domain.BookingPaymentCompleted
	}
	applied, err := s.bookings.Settle(ctx, uint(id), status, p.MpesaReceiptNumber, p.TransactionDate)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Info("[reconcile] booking already settled",
			zap.Uint64("booking_id", id),
			zap.String("checkout_request_id", p.CheckoutRequestID))
	}
	return nil
}

// ReconcileOutstanding retries follow-up work for terminal requests settled
// before the cutoff that never got marked reconciled.
func (s *PaymentService) ReconcileOutstanding(ctx context.Context, settledBefore time.Time, limit int) (int, error) {
	list, err := s.payments.ListUnreconciled(ctx, settledBefore, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range list {
		if err := s.reconcile(ctx, &list[i]); err == nil {
			done++
		}
	}
	return done, nil
}

// ResolveStale polls pending requests created before the cutoff, for payers
// whose callback never arrived.
func (s *PaymentService) ResolveStale(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	list, err := s.payments.ListStalePending(ctx, createdBefore, limit)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, p := range list {
		got, err := s.PollStatus(ctx, p.CheckoutRequestID)
		if errors.Is(err, ErrUnknownRequest) {
			// the gateway has no record of a push it once accepted; it can never complete
			applied, settleErr := s.settle(ctx, &p, &mpesa.Result{
				CheckoutRequestID: p.CheckoutRequestID,
				ResultCode:        unknownToGatewayCode,
				ResultDesc:        "checkout request unknown to gateway",
			})
			if settleErr == nil && applied {
				resolved++
			}
			continue
		}
		if err != nil {
			s.logger.Warn("[sweeper] stale poll failed",
				zap.String("checkout_request_id", p.CheckoutRequestID),
				zap.Error(err))
			continue
		}
		if got.IsTerminal() {
			resolved++
		}
	}
	return resolved, nil
}
