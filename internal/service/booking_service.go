package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beautymart/internal/domain"
	"beautymart/internal/models"
	"beautymart/internal/repository"

	"go.uber.org/zap"
)

var ErrBookingNotFound = errors.New("booking not found")

// BookingPayments is the part of the payment flow service bookings use.
type BookingPayments interface {
	InitiateServiceBooking(ctx context.Context, b *models.ServiceBooking) (*InitiateResult, error)
	PollStatus(ctx context.Context, checkoutID string) (*models.PaymentRequest, error)
}

type BookingService struct {
	bookings BookingStore
	payments BookingPayments
	logger   *zap.Logger
}

func NewBookingService(bookings BookingStore, payments BookingPayments, logger *zap.Logger) *BookingService {
	return &BookingService{bookings: bookings, payments: payments, logger: logger}
}

type BookingInput struct {
	AppointmentID string
	ServiceID     string
	ServiceName   string
	UserID        *uint
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Amount        int64
}

// Create stores a pending booking and starts its payment. A push that cannot
// be started fails the booking.
func (s *BookingService) Create(ctx context.Context, in BookingInput) (*models.ServiceBooking, *InitiateResult, error) {
	if in.AppointmentID == "" || in.ServiceID == "" || in.CustomerName == "" ||
		in.CustomerEmail == "" || in.CustomerPhone == "" {
		return nil, nil, fmt.Errorf("%w: all required fields must be provided", ErrValidation)
	}
	if in.Amount < 1 {
		return nil, nil, fmt.Errorf("%w: amount must be at least 1", ErrValidation)
	}
	name := strings.TrimSpace(in.ServiceName)
	if name == "" {
		name = "service " + in.ServiceID
	}

	b := &models.ServiceBooking{
		AppointmentID: in.AppointmentID,
		ServiceID:     in.ServiceID,
		ServiceName:   name,
		UserID:        in.UserID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		Amount:        in.Amount,
		PaymentStatus: domain.BookingPaymentPending,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, nil, err
	}

	res, err := s.payments.InitiateServiceBooking(ctx, b)
	if err != nil {
		if markErr := s.bookings.MarkFailed(ctx, b.ID); markErr != nil {
			s.logger.Error("[booking] mark failed", zap.Uint("booking_id", b.ID), zap.Error(markErr))
		}
		b.PaymentStatus = domain.BookingPaymentFailed
		return b, nil, err
	}
	if err := s.bookings.SetCheckoutID(ctx, b.ID, res.CheckoutRequestID); err != nil {
		// the payment request still references the booking, so settlement is unaffected
		s.logger.Error("[booking] store checkout id",
			zap.Uint("booking_id", b.ID),
			zap.String("checkout_request_id", res.CheckoutRequestID),
			zap.Error(err))
	}
	b.MpesaCheckoutRequestID = res.CheckoutRequestID
	return b, res, nil
}

// Status returns the booking, first polling the gateway while its payment is pending.
func (s *BookingService) Status(ctx context.Context, id uint) (*models.ServiceBooking, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus != domain.BookingPaymentPending || b.MpesaCheckoutRequestID == "" {
		return b, nil
	}
	p, err := s.payments.PollStatus(ctx, b.MpesaCheckoutRequestID)
	if err != nil {
		s.logger.Warn("[booking] payment status check failed",
			zap.Uint("booking_id", id),
			zap.String("checkout_request_id", b.MpesaCheckoutRequestID),
			zap.Error(err))
		return b, nil
	}
	if !p.IsTerminal() {
		return b, nil
	}
	return s.get(ctx, id)
}

func (s *BookingService) ListByUser(ctx context.Context, userID uint) ([]models.ServiceBooking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

func (s *BookingService) get(ctx context.Context, id uint) (*models.ServiceBooking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}
