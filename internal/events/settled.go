package events

import (
	"time"

	"beautymart/internal/models"

	"github.com/google/uuid"
)

// PaymentSettled is emitted once per payment request, by the caller whose
// transition out of pending applied.
type PaymentSettled struct {
	EventID            string     `json:"event_id"`
	CheckoutRequestID  string     `json:"checkout_request_id"`
	Purpose            string     `json:"purpose"`
	Status             string     `json:"status"`
	ReferenceID        string     `json:"reference_id"`
	Amount             int64      `json:"amount"`
	PaidAmount         int64      `json:"paid_amount,omitempty"`
	MpesaReceiptNumber string     `json:"mpesa_receipt_number,omitempty"`
	TransactionDate    *time.Time `json:"transaction_date,omitempty"`
	ResultCode         int        `json:"result_code"`
	ResultDesc         string     `json:"result_desc,omitempty"`
	SettledAt          time.Time  `json:"settled_at"`
}

func NewPaymentSettled(p *models.PaymentRequest, s models.Settlement) PaymentSettled {
	return PaymentSettled{
		EventID:            uuid.NewString(),
		CheckoutRequestID:  p.CheckoutRequestID,
		Purpose:            p.Purpose,
		Status:             s.Status,
		ReferenceID:        p.ReferenceID,
		Amount:             p.Amount,
		PaidAmount:         s.PaidAmount,
		MpesaReceiptNumber: s.MpesaReceiptNumber,
		TransactionDate:    s.TransactionDate,
		ResultCode:         s.ResultCode,
		ResultDesc:         s.ResultDesc,
		SettledAt:          s.SettledAt,
	}
}
