package mpesa

import (
	"encoding/base64"
	"errors"
	"time"
)

const (
	TransactionTypePayBill = "CustomerPayBillOnline"

	timestampLayout    = "20060102150405"
	maxTransactionDesc = 13
)

var ErrInvalidAmount = errors.New("amount must be at least 1")

// EAT is the gateway's local time; Kenya has no daylight saving.
var EAT = time.FixedZone("EAT", 3*60*60)

// Timestamp formats t the way Daraja expects it in Password and Timestamp fields.
func Timestamp(t time.Time) string {
	return t.In(EAT).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// PushInput is what a caller knows about a payment before it is signed.
type PushInput struct {
	Phone            string
	Amount           int64 // whole KES
	CallbackURL      string
	AccountReference string
	Description      string
}

// Composer signs STK requests. Every call takes a new timestamp, so a retried
// request never reuses a stale password.
type Composer struct {
	ShortCode string
	Passkey   string
	Now       func() time.Time
}

func NewComposer(shortCode, passkey string) *Composer {
	return &Composer{ShortCode: shortCode, Passkey: passkey, Now: time.Now}
}

func (c *Composer) stamp() (timestamp, password string) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	timestamp = Timestamp(now())
	return timestamp, Password(c.ShortCode, c.Passkey, timestamp)
}

func (c *Composer) STKPush(in PushInput) (STKPushRequest, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return STKPushRequest{}, err
	}
	if in.Amount < 1 {
		return STKPushRequest{}, ErrInvalidAmount
	}
	desc := in.Description
	if r := []rune(desc); len(r) > maxTransactionDesc {
		desc = string(r[:maxTransactionDesc])
	}
	timestamp, password := c.stamp()
	return STKPushRequest{
		BusinessShortCode: c.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   TransactionTypePayBill,
		Amount:            in.Amount,
		PartyA:            phone,
		PartyB:            c.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       in.CallbackURL,
		AccountReference:  in.AccountReference,
		TransactionDesc:   desc,
	}, nil
}

func (c *Composer) Query(checkoutRequestID string) STKQueryRequest {
	timestamp, password := c.stamp()
	return STKQueryRequest{
		BusinessShortCode: c.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}
}
