package repository

import (
	"context"
	"errors"
	"time"

	"beautymart/internal/domain"
	"beautymart/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository stores payment requests in MySQL.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentRequest) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	err := r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindByPackage returns the latest generic package request made with the given initiation timestamp.
func (r *PaymentRepository) FindByPackage(ctx context.Context, packageID, timestamp string) (*models.PaymentRequest, error) {
	var p models.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("reference_id = ? AND timestamp = ? AND purpose = ?", packageID, timestamp, domain.PurposeGenericPackage).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Transition moves a pending request to its terminal state. It reports false
// when the row was no longer pending, so concurrent callers settle at most once.
func (r *PaymentRepository) Transition(ctx context.Context, checkoutID string, s models.Settlement) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("checkout_request_id = ? AND status = ?", checkoutID, domain.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":               s.Status,
			"mpesa_receipt_number": s.MpesaReceiptNumber,
			"transaction_date":     s.TransactionDate,
			"paid_amount":          s.PaidAmount,
			"result_code":          s.ResultCode,
			"result_desc":          s.ResultDesc,
			"updated_at":           s.SettledAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentRepository) MarkReconciled(ctx context.Context, checkoutID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("checkout_request_id = ? AND reconciled_at IS NULL", checkoutID).
		Update("reconciled_at", at).Error
}

// ListUnreconciled returns terminal requests settled before the cutoff whose follow-up never completed.
func (r *PaymentRepository) ListUnreconciled(ctx context.Context, settledBefore time.Time, limit int) ([]models.PaymentRequest, error) {
	var list []models.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("status IN ? AND reconciled_at IS NULL AND updated_at < ?",
			[]string{domain.PaymentStatusCompleted, domain.PaymentStatusFailed}, settledBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *PaymentRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.PaymentRequest, error) {
	var list []models.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.PaymentStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
