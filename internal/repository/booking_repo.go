package repository

import (
	"context"
	"errors"
	"time"

	"beautymart/internal/domain"
	"beautymart/internal/models"

	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *models.ServiceBooking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, id uint) (*models.ServiceBooking, error) {
	var b models.ServiceBooking
	err := r.db.WithContext(ctx).First(&b, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) SetCheckoutID(ctx context.Context, id uint, checkoutID string) error {
	return r.db.WithContext(ctx).
		Model(&models.ServiceBooking{}).
		Where("id = ?", id).
		Update("mpesa_checkout_request_id", checkoutID).Error
}

// MarkFailed fails a booking whose payment could not be started.
func (r *BookingRepository) MarkFailed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.ServiceBooking{}).
		Where("id = ? AND payment_status = ?", id, domain.BookingPaymentPending).
		Update("payment_status", domain.BookingPaymentFailed).Error
}

// Settle mirrors a terminal payment onto the booking. It reports false when
// the booking had already left pending.
func (r *BookingRepository) Settle(ctx context.Context, id uint, status, receipt string, transactionDate *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ServiceBooking{}).
		Where("id = ? AND payment_status = ?", id, domain.BookingPaymentPending).
		Updates(map[string]interface{}{
			"payment_status":       status,
			"mpesa_receipt_number": receipt,
			"transaction_date":     transactionDate,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID uint) ([]models.ServiceBooking, error) {
	var list []models.ServiceBooking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}
