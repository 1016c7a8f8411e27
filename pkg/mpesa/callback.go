package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	ResultCodeSuccess = 0
	// ResultCodeCancelled is reported when the payer cancels or the prompt expires.
	ResultCodeCancelled = 1032
	// ResultCodeStillProcessing is a query answer, not an outcome.
	ResultCodeStillProcessing = 4999
)

// finalFailureCodes are query result codes after which the push can no longer succeed.
var finalFailureCodes = map[int]bool{
	1:    true, // insufficient balance
	1001: true, // subscriber busy with another transaction
	1019: true, // transaction expired
	1025: true, // error sending the push prompt
	1032: true, // cancelled by payer
	1037: true, // payer unreachable
	2001: true, // wrong PIN
	9999: true, // error sending the push prompt
}

// IsFinalQueryCode reports whether a status query result code settles the push.
func IsFinalQueryCode(code int) bool {
	return code == ResultCodeSuccess || finalFailureCodes[code]
}

var ErrMalformedCallback = errors.New("mpesa: malformed callback")

// Code is a Daraja result code. Callbacks send it as a number, query
// responses as a string.
type Code int

func (c *Code) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("result code %q: %w", s, err)
	}
	*c = Code(n)
	return nil
}

type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        Code              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

// CallbackEnvelope is the body Daraja posts to the CallBackURL.
type CallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// Result is the final disposition of one push, from a callback or a query.
type Result struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Success           bool
	ReceiptNumber     string
	TransactionDate   *time.Time
	Amount            int64
	PhoneNumber       string
}

// ParseCallback decodes a callback body. Success requires ResultCode 0 and
// metadata; everything else is a failure.
func ParseCallback(body []byte) (*Result, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}
	res := &Result{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        int(cb.ResultCode),
		ResultDesc:        cb.ResultDesc,
	}
	if cb.ResultCode != ResultCodeSuccess || cb.CallbackMetadata == nil || len(cb.CallbackMetadata.Item) == 0 {
		return res, nil
	}
	res.Success = true
	for _, item := range cb.CallbackMetadata.Item {
		raw := rawString(item.Value)
		switch item.Name {
		case "MpesaReceiptNumber":
			res.ReceiptNumber = raw
		case "TransactionDate":
			if t, err := time.ParseInLocation(timestampLayout, raw, EAT); err == nil {
				res.TransactionDate = &t
			}
		case "Amount":
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				res.Amount = int64(math.Round(f))
			}
		case "PhoneNumber":
			res.PhoneNumber = raw
		}
	}
	return res, nil
}

func rawString(v json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(v)), `"`)
}
