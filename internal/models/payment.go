package models

import (
	"time"

	"beautymart/internal/domain"
)

// PendingUser is the prospective seller account held until its package payment completes.
type PendingUser struct {
	UserName     string `json:"user_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	AccountType  string `json:"account_type"`
	PackageID    string `json:"package_id"`
}

// PaymentRequest is one STK push attempt, keyed by the gateway's checkout id.
// Rows are never deleted.
type PaymentRequest struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	CheckoutRequestID  string       `gorm:"size:100;uniqueIndex;not null" json:"checkout_request_id"`
	MerchantRequestID  string       `gorm:"size:100" json:"merchant_request_id"`
	Purpose            string       `gorm:"size:30;not null;index" json:"purpose"` // generic_package | seller_onboarding | service_booking
	Amount             int64        `gorm:"not null" json:"amount"`
	PhoneNumber        string       `gorm:"size:20;not null" json:"phone_number"`
	Status             string       `gorm:"size:20;not null;index" json:"status"` // pending | completed | failed
	PayerEmail         string       `gorm:"size:255;index" json:"payer_email,omitempty"`
	ReferenceID        string       `gorm:"size:100;index:idx_payment_ref_ts" json:"reference_id"` // package id or booking id
	PackageName        string       `gorm:"size:100" json:"package_name,omitempty"`
	Timestamp          string       `gorm:"size:14;index:idx_payment_ref_ts" json:"timestamp"`
	PendingUser        *PendingUser `gorm:"serializer:json;type:text" json:"-"`
	MpesaReceiptNumber string       `gorm:"size:50" json:"mpesa_receipt_number,omitempty"`
	TransactionDate    *time.Time   `json:"transaction_date,omitempty"`
	PaidAmount         int64        `json:"paid_amount,omitempty"`
	ResultCode         *int         `json:"result_code,omitempty"`
	ResultDesc         string       `gorm:"size:255" json:"result_desc,omitempty"`
	ReconciledAt       *time.Time   `gorm:"index" json:"reconciled_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (PaymentRequest) TableName() string {
	return "payment_requests"
}

func (p *PaymentRequest) IsTerminal() bool {
	return p.Status == domain.PaymentStatusCompleted || p.Status == domain.PaymentStatusFailed
}

// Settlement is the terminal outcome written onto a pending PaymentRequest.
type Settlement struct {
	Status             string
	MpesaReceiptNumber string
	TransactionDate    *time.Time
	PaidAmount         int64
	ResultCode         int
	ResultDesc         string
	SettledAt          time.Time
}
