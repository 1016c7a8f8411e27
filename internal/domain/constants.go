package domain

const (
	AccountTypeBuyer  = "buyer"
	AccountTypeSeller = "seller"
)

// Payment purposes; each selects a reconciliation hook.
const (
	PurposeGenericPackage   = "generic_package"
	PurposeSellerOnboarding = "seller_onboarding"
	PurposeServiceBooking   = "service_booking"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Booking payment status also allows cancelled, set by booking management.
const (
	BookingPaymentPending   = "pending"
	BookingPaymentCompleted = "completed"
	BookingPaymentFailed    = "failed"
	BookingPaymentCancelled = "cancelled"
)

// Client-facing poll answers.
const (
	PollPending = "pending"
	PollSuccess = "success"
	PollFailed  = "failed"
)

// Client polling policy advertised to the frontend.
const (
	PollIntervalSeconds = 10
	MaxPollAttempts     = 30
)

// PollAnswer maps a stored payment status to what the status endpoints return.
func PollAnswer(status string) string {
	switch status {
	case PaymentStatusCompleted:
		return PollSuccess
	case PaymentStatusFailed:
		return PollFailed
	default:
		return PollPending
	}
}
