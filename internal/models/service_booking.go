package models

import (
	"time"
)

// ServiceBooking is a paid booking of a seller's service. Its PaymentStatus is
// what buyers and sellers see; the PaymentRequest is the audit row behind it.
type ServiceBooking struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	AppointmentID          string     `gorm:"size:64;not null" json:"appointment_id"`
	ServiceID              string     `gorm:"size:64;not null;index" json:"service_id"`
	ServiceName            string     `gorm:"size:100" json:"service_name"`
	UserID                 *uint      `gorm:"index" json:"user_id,omitempty"`
	CustomerName           string     `gorm:"size:100;not null" json:"customer_name"`
	CustomerEmail          string     `gorm:"size:255;not null" json:"customer_email"`
	CustomerPhone          string     `gorm:"size:20;not null" json:"customer_phone"`
	Amount                 int64      `gorm:"not null" json:"amount"`
	PaymentStatus          string     `gorm:"size:20;not null;default:'pending';index" json:"payment_status"`
	MpesaCheckoutRequestID string     `gorm:"size:100;index" json:"mpesa_checkout_request_id,omitempty"`
	MpesaReceiptNumber     string     `gorm:"size:50" json:"mpesa_receipt_number,omitempty"`
	TransactionDate        *time.Time `json:"transaction_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func (ServiceBooking) TableName() string {
	return "service_bookings"
}
